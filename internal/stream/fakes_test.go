package stream

import (
	"context"
	"errors"
	"sync"
)

type fakeBuffer struct {
	mu       sync.Mutex
	appended []int
	data     map[int][]byte
	eos      bool
	closed   int
	gate     chan struct{} // when set, Append waits for a value
	appendFn func(Chunk) error
}

func (b *fakeBuffer) Append(ctx context.Context, c Chunk) error {
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if b.appendFn != nil {
		if err := b.appendFn(c); err != nil {
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appended = append(b.appended, c.Sequence)
	if b.data == nil {
		b.data = map[int][]byte{}
	}
	b.data[c.Sequence] = c.Data
	return nil
}

func (b *fakeBuffer) EndOfStream() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eos = true
	return nil
}

func (b *fakeBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

func (b *fakeBuffer) snapshot() (appended []int, eos bool, closed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.appended...), b.eos, b.closed
}

type fakeElement struct {
	mu        sync.Mutex
	supported bool
	buf       *fakeBuffer
	opened    int
	t         float64
	seeks     []float64
	played    int
}

func (e *fakeElement) IsTypeSupported(string) bool { return e.supported }

func (e *fakeElement) OpenBuffer(string) (MediaBuffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opened++
	return e.buf, nil
}

func (e *fakeElement) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t
}

func (e *fakeElement) setTime(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.t = t
}

func (e *fakeElement) Seek(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.t = t
	e.seeks = append(e.seeks, t)
}

func (e *fakeElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.played++
	return nil
}

type fakeSource struct {
	meta *VideoMetadata
	err  error
}

func (s *fakeSource) VideoMetadata(context.Context) (*VideoMetadata, error) {
	return s.meta, s.err
}

var errFlaky = errors.New("flaky network")

// fakeFetcher serves slices of payload and records every call by segment start.
type fakeFetcher struct {
	payload []byte

	mu    sync.Mutex
	calls map[int64]int
	order []int64

	// failN fails the first n calls for a start offset.
	failN map[int64]int
	// hold blocks a start offset until the channel is closed.
	hold map[int64]chan struct{}

	blockAll bool
	canceled int
}

func newFakeFetcher(payload []byte) *fakeFetcher {
	return &fakeFetcher{
		payload: payload,
		calls:   map[int64]int{},
		failN:   map[int64]int{},
		hold:    map[int64]chan struct{}{},
	}
}

func (f *fakeFetcher) FetchRange(ctx context.Context, start, end int64) ([]byte, error) {
	f.mu.Lock()
	f.calls[start]++
	f.order = append(f.order, start)
	fail := f.failN[start] > 0
	if fail {
		f.failN[start]--
	}
	hold := f.hold[start]
	blockAll := f.blockAll
	f.mu.Unlock()

	if blockAll {
		<-ctx.Done()
		f.mu.Lock()
		f.canceled++
		f.mu.Unlock()
		return nil, ctx.Err()
	}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errFlaky
	}
	return append([]byte(nil), f.payload[start:end]...), nil
}

func (f *fakeFetcher) callsFor(start int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[start]
}

func (f *fakeFetcher) orderSnapshot() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.order...)
}
