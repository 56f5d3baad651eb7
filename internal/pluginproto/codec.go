package pluginproto

import (
	"encoding/binary"
	"errors"
	"io"

	"go.mongodb.org/mongo-driver/bson"
)

// ErrConnectionReset is returned by Reader.Read when the peer closes the
// connection mid-document: some bytes of a frame were buffered but the
// stream ended before the full document arrived.
var ErrConnectionReset = errors.New("pluginproto: connection reset by peer")

// Reader decodes a stream of length-prefixed BSON documents. Each document
// is self-delimiting: its first four bytes are a little-endian int32 total
// length (BSON's own document length field), so no extra framing is added
// on top.
type Reader struct {
	src io.Reader
}

// NewReader returns a Reader that decodes documents from src.
func NewReader(src io.Reader) *Reader { return &Reader{src: src} }

// Read decodes the next document into v (a pointer to a Request or
// Response). It returns io.EOF once the peer has cleanly closed the
// connection between documents.
func (r *Reader) Read(v interface{}) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.src, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return ErrConnectionReset
		}
		return err
	}

	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length < 4 {
		return errors.New("pluginproto: invalid document length")
	}

	doc := make([]byte, length)
	copy(doc, lenBuf[:])
	if _, err := io.ReadFull(r.src, doc[4:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrConnectionReset
		}
		return err
	}

	return bson.Unmarshal(doc, v)
}

// Writer encodes values as BSON documents onto a stream.
type Writer struct {
	dst io.Writer
}

// NewWriter returns a Writer that encodes documents onto dst.
func NewWriter(dst io.Writer) *Writer { return &Writer{dst: dst} }

// Write encodes v (a Request or Response) as a BSON document and writes it
// in full.
func (w *Writer) Write(v interface{}) error {
	doc, err := bson.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.dst.Write(doc)
	return err
}
