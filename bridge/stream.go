package bridge

import (
	"bufio"
	"io"
	"sync"
	"sync/atomic"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/stdcopy"
)

// LineStream is a lazy, forward-only sequence of decoded output lines from
// a streamed exec command. It cannot be restarted; once Next returns false
// the underlying connection is closed. Close may be called from another
// goroutine to unblock a pending Next.
type LineStream struct {
	scanner *bufio.Scanner
	release func()

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewLineStream wraps an already demultiplexed reader. The stream owns the
// reader and closes it together with the stream.
func NewLineStream(r io.ReadCloser) *LineStream {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &LineStream{scanner: scanner, release: func() { r.Close() }}
}

func newLineStream(attach types.HijackedResponse) *LineStream {
	pr, pw := io.Pipe()
	go func() {
		// Demultiplex the docker stream; stdout and stderr interleave in
		// arrival order.
		_, err := stdcopy.StdCopy(pw, pw, attach.Reader)
		pw.CloseWithError(err)
	}()

	s := NewLineStream(pr)
	s.release = func() {
		pr.Close()
		if attach.Conn != nil {
			attach.Close()
		}
	}
	return s
}

// Next advances to the next line. It blocks until a line is available or
// the stream ends.
func (s *LineStream) Next() bool {
	if s.closed.Load() {
		return false
	}
	if s.scanner.Scan() {
		return true
	}
	s.Close()
	return false
}

// Text returns the current line.
func (s *LineStream) Text() string {
	return s.scanner.Text()
}

// Err returns the first non-EOF error seen while reading.
func (s *LineStream) Err() error {
	return s.scanner.Err()
}

// Close releases the underlying attach connection. Further Next calls
// return false; a Next blocked on the connection unblocks.
func (s *LineStream) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.release()
	})
}
