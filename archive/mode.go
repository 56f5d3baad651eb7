package archive

import (
	"fmt"
	"os"
	"time"
)

// Kind tags an archive entry's type.
type Kind uint32

const (
	KindFile Kind = 1
	KindDirectory Kind = 2
	KindSymlink Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("archive.Kind(%d)", uint32(k))
	}
}

func kindValid(k Kind) bool {
	return k == KindFile || k == KindDirectory || k == KindSymlink
}

// Mode packs an entry's type bits (16-17) and nine POSIX permission bits
// (0-8, rwxrwxrwx for user/group/other) into a single 32-bit value, the
// layout spec'd to fit entirely inside one u32 field and round-trip
// exactly.
type Mode uint32

// NewMode builds a Mode from a kind and the low 9 bits of perm.
func NewMode(kind Kind, perm os.FileMode) Mode {
	return Mode(uint32(kind)<<16 | uint32(perm.Perm()))
}

// Kind returns the type bits.
func (m Mode) Kind() Kind { return Kind((uint32(m) >> 16) & 0x3) }

// Perm returns the nine permission bits as an os.FileMode.
func (m Mode) Perm() os.FileMode { return os.FileMode(uint32(m) & 0x1FF) }

// DefaultFileMode is used by AppendFile when the caller does not call
// WithMode.
const DefaultFileMode = os.FileMode(0644)

// DefaultDirMode is used by AppendDirectory when the caller does not call
// WithMode.
const DefaultDirMode = os.FileMode(0755)

// Timestamp is a signed Unix-seconds/nanoseconds pair, the wire form of
// every archive entry timestamp.
type Timestamp struct {
	Sec  int64
	Nsec int32
}

// FromTime converts a time.Time to its wire Timestamp form.
func FromTime(t time.Time) Timestamp {
	return Timestamp{Sec: t.Unix(), Nsec: int32(t.Nanosecond())}
}

// Time converts a Timestamp back to a time.Time in UTC.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Sec, int64(ts.Nsec)).UTC()
}
