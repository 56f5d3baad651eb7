package container

import "fmt"

// HeaderErrorKind enumerates the ways a header can fail to parse or
// unwrap, carried by HeaderError.
type HeaderErrorKind int

const (
	InvalidHeader HeaderErrorKind = iota
	UnsupportedRevision
	WrongPassword
	OverwriteUserdata
	Exists
)

func (k HeaderErrorKind) String() string {
	switch k {
	case InvalidHeader:
		return "invalid header"
	case UnsupportedRevision:
		return "unsupported revision"
	case WrongPassword:
		return "wrong password"
	case OverwriteUserdata:
		return "userdata would overflow the header block"
	case Exists:
		return "container already exists"
	default:
		return fmt.Sprintf("HeaderErrorKind(%d)", int(k))
	}
}

// HeaderError reports a failure specific to the header/master-secret
// layer, as opposed to a lower-level backend, codec, cipher or KDF error.
type HeaderError struct {
	Kind HeaderErrorKind
}

func (e *HeaderError) Error() string { return "container: " + e.Kind.String() }

// Is reports whether target is a *HeaderError of the same Kind, so that
// errors.Is(err, &HeaderError{Kind: WrongPassword}) matches by kind.
func (e *HeaderError) Is(target error) bool {
	other, ok := target.(*HeaderError)
	return ok && other.Kind == e.Kind
}
