package kernel

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// lineChannel pumps lines from the child's stdout so reads can select on
// a context. Lines are delivered without their terminator.
type lineChannel struct {
	ch   chan lineOrErr
	stop chan struct{}
	once sync.Once
}

type lineOrErr struct {
	line string
	err  error
}

func newLineChannel(r io.Reader) *lineChannel {
	c := &lineChannel{
		ch:   make(chan lineOrErr),
		stop: make(chan struct{}),
	}
	go c.pump(bufio.NewReaderSize(r, 64*1024))
	return c
}

// pump reads with ReadString rather than a Scanner; harvest lines are
// unbounded in length.
func (c *lineChannel) pump(r *bufio.Reader) {
	defer close(c.ch)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			if !c.send(lineOrErr{line: strings.TrimRight(line, "\r\n")}) {
				return
			}
		}
		if err != nil {
			c.send(lineOrErr{err: err})
			return
		}
	}
}

func (c *lineChannel) send(v lineOrErr) bool {
	select {
	case c.ch <- v:
		return true
	case <-c.stop:
		return false
	}
}

// next returns the next line. It returns io.EOF once the stream ends and
// ctx.Err() if ctx is done first.
func (c *lineChannel) next(ctx context.Context) (string, error) {
	select {
	case v, ok := <-c.ch:
		if !ok {
			return "", io.EOF
		}
		return v.line, v.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// close releases the pump goroutine. The underlying reader must also be
// closed for a pump blocked in a read to exit.
func (c *lineChannel) close() {
	c.once.Do(func() { close(c.stop) })
}
