package runner

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// linePump reads lines in a background goroutine so that reads can be
// abandoned when the context is cancelled.
type linePump struct {
	reader *bufio.Reader
	lines  chan inputResult
	once   sync.Once
}

type inputResult struct {
	text string
	err  error
}

func newLinePump(r io.Reader) *linePump {
	return &linePump{reader: bufio.NewReader(r)}
}

func (p *linePump) start() {
	p.once.Do(func() {
		p.lines = make(chan inputResult)
		go p.run()
	})
}

func (p *linePump) run() {
	for {
		text, err := p.reader.ReadString('\n')
		if text != "" {
			p.lines <- inputResult{text: text}
		}
		if err != nil {
			if err == io.EOF {
				close(p.lines)
				return
			}
			p.lines <- inputResult{err: err}
			// Backoff for persistent read failures.
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// Next returns the next trimmed line, io.EOF once input is exhausted, or the
// context error.
func (p *linePump) Next(ctx context.Context) (string, error) {
	p.start()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(res.text), nil
	}
}
