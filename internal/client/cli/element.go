package cli

import (
	"context"
	"errors"
	"mime"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/stream"
)

var errBufferEnded = errors.New("media buffer already ended")

// fileElement plays a stream into a local file. Its clock runs at rate
// seconds of media per wall-clock second once Play is called.
type fileElement struct {
	path string
	rate float64
	now  func() time.Time

	mu      sync.Mutex
	base    float64
	started time.Time
	playing bool
	buf     *fileBuffer
}

func newFileElement(path string, rate float64) *fileElement {
	if rate <= 0 {
		rate = 1
	}
	return &fileElement{path: path, rate: rate, now: time.Now}
}

func (e *fileElement) IsTypeSupported(mimeType string) bool {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "video/") || strings.HasPrefix(mt, "audio/")
}

func (e *fileElement) OpenBuffer(string) (stream.MediaBuffer, error) {
	f, err := os.OpenFile(e.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	b := &fileBuffer{f: f}
	e.mu.Lock()
	e.buf = b
	e.mu.Unlock()
	return b, nil
}

// written reports the bytes appended to the output file so far.
func (e *fileElement) written() int64 {
	e.mu.Lock()
	b := e.buf
	e.mu.Unlock()
	if b == nil {
		return 0
	}
	return b.Written()
}

func (e *fileElement) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.playing {
		return e.base
	}
	return e.base + e.now().Sub(e.started).Seconds()*e.rate
}

func (e *fileElement) Seek(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.base = t
	e.started = e.now()
}

func (e *fileElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.playing {
		e.playing = true
		e.started = e.now()
	}
	return nil
}

// fileBuffer writes each chunk at its plaintext offset, so segments
// appended after a seek land where they belong.
type fileBuffer struct {
	mu      sync.Mutex
	f       *os.File
	written int64
	ended   bool
}

func (b *fileBuffer) Append(ctx context.Context, c stream.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		return errBufferEnded
	}
	n, err := b.f.WriteAt(c.Data, c.Offset)
	b.written += int64(n)
	return err
}

func (b *fileBuffer) EndOfStream() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended = true
	return b.f.Sync()
}

func (b *fileBuffer) Close() error {
	return b.f.Close()
}

func (b *fileBuffer) Written() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written
}
