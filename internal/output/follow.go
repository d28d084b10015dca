// Package output tails a job's output file for the detail pane.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	initialTailBytes = 256 * 1024
	defaultLineLimit = 2000
)

// Path is where Slurm writes a job's stdout when the script does not say otherwise.
func Path(submitDirectory, jobID string) string {
	if submitDirectory == "" {
		return ""
	}
	return filepath.Join(submitDirectory, fmt.Sprintf("slurm-%s.out", jobID))
}

// lineBuffer keeps the last limit complete lines plus the line being written.
// A carriage return restarts the current line, as progress bars expect.
type lineBuffer struct {
	lines   []string
	current strings.Builder
	limit   int
}

func (b *lineBuffer) reset() {
	b.lines = b.lines[:0]
	b.current.Reset()
}

func (b *lineBuffer) ingest(data []byte) {
	for len(data) > 0 {
		i := strings.IndexAny(string(data), "\r\n")
		if i < 0 {
			b.current.Write(data)
			return
		}
		b.current.Write(data[:i])
		if data[i] == '\n' {
			b.lines = append(b.lines, b.current.String())
			if len(b.lines) > b.limit {
				b.lines = b.lines[len(b.lines)-b.limit:]
			}
		}
		b.current.Reset()
		data = data[i+1:]
	}
}

func (b *lineBuffer) tail(n int) []string {
	out := b.lines
	if b.current.Len() > 0 {
		out = append(append([]string{}, b.lines...), b.current.String())
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// Follower reads a file incrementally, starting near its end.
type Follower struct {
	path    string
	offset  int64
	started bool
	missing bool
	buf     lineBuffer
}

func NewFollower(path string) *Follower {
	return &Follower{path: path, buf: lineBuffer{limit: defaultLineLimit}}
}

func (f *Follower) Path() string {
	return f.path
}

// Missing reports whether the file did not exist at the last Poll.
func (f *Follower) Missing() bool {
	return f.missing
}

// Poll reads whatever was appended since the previous call. A file that shrank is
// read again from the start.
func (f *Follower) Poll() error {
	if f.path == "" {
		f.missing = true
		return nil
	}
	st, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.missing = true
			return nil
		}
		return errors.Wrapf(err, "stat %s", f.path)
	}
	f.missing = false

	if st.Size() < f.offset {
		f.offset = 0
		f.started = false
		f.buf.reset()
	}
	if f.started && st.Size() == f.offset {
		return nil
	}

	file, err := os.Open(f.path)
	if err != nil {
		return errors.Wrapf(err, "open %s", f.path)
	}
	defer file.Close()

	start := f.offset
	skipPartial := false
	if !f.started && st.Size() > initialTailBytes {
		start = st.Size() - initialTailBytes
		skipPartial = true
	}
	if _, err := file.Seek(start, io.SeekStart); err != nil {
		return errors.Wrapf(err, "seek %s", f.path)
	}
	data, err := io.ReadAll(io.LimitReader(file, st.Size()-start))
	if err != nil {
		return errors.Wrapf(err, "read %s", f.path)
	}
	f.offset = start + int64(len(data))
	if skipPartial {
		// the first line is probably cut short
		if i := strings.IndexByte(string(data), '\n'); i >= 0 {
			data = data[i+1:]
		}
	}

	f.buf.ingest(data)
	f.started = true
	return nil
}

// Tail returns up to n of the most recent lines; n <= 0 returns all kept lines.
func (f *Follower) Tail(n int) []string {
	return f.buf.tail(n)
}
