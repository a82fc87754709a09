package solidify

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// lineBufferSize is the fixed-size formatted-line buffer spec.md §4.9
// describes: a deliberate limit to bound stack usage on tiny targets.
// Overflowing it is accepted silently — the design expects identifier and
// numeric-literal emission sites to always fit, and free-form byte
// strings take the unformatted path instead (spec.md §9, "Line-buffer
// truncation").
const lineBufferSize = 768

// Sink is the solidifier's single writable destination: append-only, no
// seek, no read (spec.md §4.9). It wraps any io.Writer — a caller-owned
// file handle or the default process-wide text writer — behind the same
// two write paths spec.md describes.
type Sink struct {
	w   *bufio.Writer
	buf [lineBufferSize]byte
}

// NewSink wraps w as a Sink.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: bufio.NewWriter(w)}
}

// NewStdoutSink is the "default process-wide text writer" spec.md §6
// describes for when Dump is called without an explicit output.
func NewStdoutSink() *Sink {
	return NewSink(os.Stdout)
}

// Writef writes a formatted line through the fixed-size line buffer,
// truncating silently if the formatted text would overflow it. Callers
// are expected never to exceed it intentionally (spec.md §4.9); only
// free-form byte strings may, and those use WriteRaw instead.
func (s *Sink) Writef(format string, args ...interface{}) error {
	n := copy(s.buf[:], fmt.Sprintf(format, args...))
	_, err := s.w.Write(s.buf[:n])
	return err
}

// WriteRaw writes s unformatted and unbounded, for content whose length
// may exceed the formatted line buffer (spec.md §4.2: strings of length
// >= 255 take this path; spec.md §4.9 names it the "unformatted path").
func (s *Sink) WriteRaw(str string) error {
	_, err := io.WriteString(s.w, str)
	return err
}

// Flush flushes any buffered output to the underlying writer. Dump calls
// this after a successful emission.
func (s *Sink) Flush() error {
	return s.w.Flush()
}
