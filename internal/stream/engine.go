package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/logging"
)

const (
	DefaultTimeUpdateInterval = 250 * time.Millisecond
	DefaultFetchTimeout       = 30 * time.Second
	eventBuffer               = 16
)

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithThreshold(th float64) Option {
	return func(e *Engine) { e.policy.Threshold = th }
}

// WithTimeUpdateInterval sets how often playback position is polled.
func WithTimeUpdateInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithFetchTimeout bounds a single segment fetch. A timed out fetch is
// retried like any other failure.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

// WithMaxFetchAttempts makes a segment fatal after n failed fetches. Zero,
// the default, retries forever.
func WithMaxFetchAttempts(n int) Option {
	return func(e *Engine) { e.maxAttempts = n }
}

// Engine is one playback session. Attach an element, call Play, and use
// Seek and Dispose from any goroutine.
type Engine struct {
	source  MetadataSource
	fetcher RangeFetcher
	policy  Policy
	logger  logging.Logger

	interval     time.Duration
	fetchTimeout time.Duration
	maxAttempts  int

	mu       sync.Mutex
	el       Element
	state    State
	subs     []chan Event
	cancel   context.CancelFunc
	done     chan struct{}
	disposed bool

	seekMu     sync.Mutex
	seekTarget float64
	seekSignal chan struct{}
}

func New(source MetadataSource, fetcher RangeFetcher, opts ...Option) *Engine {
	e := &Engine{
		source:       source,
		fetcher:      fetcher,
		policy:       Policy{Threshold: DefaultThreshold},
		logger:       logging.NewNop(),
		interval:     DefaultTimeUpdateInterval,
		fetchTimeout: DefaultFetchTimeout,
		seekSignal:   make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Attach binds the element playback renders into.
func (e *Engine) Attach(el Element) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return ErrDisposed
	}
	if e.done != nil {
		return ErrAlreadyStarted
	}
	e.el = el
	return nil
}

// Subscribe returns a channel of state changes. Events are dropped when the
// subscriber falls behind; the channel is closed by Dispose.
func (e *Engine) Subscribe() <-chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan Event, eventBuffer)
	if e.disposed {
		close(ch)
		return ch
	}
	e.subs = append(e.subs, ch)
	return ch
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == s && err == nil {
		return
	}
	e.state = s
	ev := Event{State: s, Err: err}
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			e.logger.Warn(context.Background(), "stream event dropped", "state", s.String())
		}
	}
}

// Play loads the video metadata, checks the codec and opens the buffer, then
// hands the session to the owner goroutine. It returns ErrUnsupportedCodec
// before any segment is fetched when the element cannot decode the stream.
func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	switch {
	case e.disposed:
		e.mu.Unlock()
		return ErrDisposed
	case e.el == nil:
		e.mu.Unlock()
		return ErrNotAttached
	case e.done != nil:
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	el := e.el
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	fail := func(err error) error {
		e.setState(StateError, err)
		cancel()
		close(done)
		return err
	}

	e.setState(StateMetadataLoading, nil)
	meta, err := e.source.VideoMetadata(ctx)
	if err != nil {
		return fail(fmt.Errorf("load video metadata: %w", err))
	}
	if !el.IsTypeSupported(meta.MimeType) {
		return fail(fmt.Errorf("%w: %s", ErrUnsupportedCodec, meta.MimeType))
	}
	segs, err := Partition(meta)
	if err != nil {
		return fail(err)
	}
	buf, err := el.OpenBuffer(meta.MimeType)
	if err != nil {
		return fail(fmt.Errorf("open media buffer: %w", err))
	}

	e.logger.Info(ctx, "stream started", "mime", meta.MimeType, "segments", len(segs), "bytes", meta.TotalLength)
	e.setState(StateBuffering, nil)

	s := &session{
		e:         e,
		el:        el,
		buf:       buf,
		meta:      meta,
		segs:      segs,
		inflight:  make(map[int]context.CancelFunc),
		pending:   make(map[int][]byte),
		attempts:  make(map[int]int),
		retry:     make(map[int]struct{}),
		results:   make(chan fetchResult, len(segs)),
		startedAt: time.Now(),
	}
	go func() {
		defer close(done)
		s.run(ctx)
	}()
	return nil
}

// Seek moves playback to t seconds. The owner picks the new position up on
// its next turn; an unrequested target segment is fetched out of order.
func (e *Engine) Seek(t float64) error {
	e.mu.Lock()
	running := e.done != nil && !e.disposed
	e.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	e.seekMu.Lock()
	e.seekTarget = t
	e.seekMu.Unlock()

	select {
	case e.seekSignal <- struct{}{}:
	default:
	}
	return nil
}

func (e *Engine) takeSeek() float64 {
	e.seekMu.Lock()
	defer e.seekMu.Unlock()
	return e.seekTarget
}

// Dispose cancels every in-flight fetch, waits for the fetches and the owner
// to finish, and closes subscriber channels. It is safe to call more than once.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	e.mu.Lock()
	for _, ch := range e.subs {
		close(ch)
	}
	e.subs = nil
	e.mu.Unlock()
}

type fetchResult struct {
	seq  int
	data []byte
	err  error
}

// session is owned by the run goroutine; nothing else touches it.
type session struct {
	e    *Engine
	el   Element
	buf  MediaBuffer
	meta *VideoMetadata
	segs []Segment

	inflight map[int]context.CancelFunc
	pending  map[int][]byte
	attempts map[int]int

	// failed fetches awaiting the next tick; they hold back higher appends
	retry   map[int]struct{}
	results chan fetchResult
	fetches sync.WaitGroup

	playing   bool
	seeking   bool
	seekFloor int
	startedAt time.Time
}

func (s *session) busy(i int) bool {
	_, f := s.inflight[i]
	_, p := s.pending[i]
	return f || p
}

func (s *session) run(ctx context.Context) {
	log := s.e.logger
	defer func() {
		for _, cancel := range s.inflight {
			cancel()
		}
		s.fetches.Wait()
		if err := s.buf.Close(); err != nil {
			log.Warn(context.Background(), "media buffer close failed", "error", err)
		}
	}()

	// Container/init data and the first playable segment go first.
	for i := 0; i < 2 && i < len(s.segs); i++ {
		s.fetch(ctx, i)
	}

	ticker := time.NewTicker(s.e.interval)
	defer ticker.Stop()

	for {
		var err error
		var finished bool

		select {
		case <-ctx.Done():
			return
		case r := <-s.results:
			err = s.handleResult(ctx, r)
			// failures wait for the ticker so retries stay paced
			if err == nil && r.err == nil {
				finished, err = s.tick(ctx)
			}
		case <-s.e.seekSignal:
			t := s.e.takeSeek()
			s.el.Seek(t)
			s.dropRetriesBefore(t)
			s.seeking = true
			s.e.setState(StateSeeking, nil)
			finished, err = s.tick(ctx)
		case <-ticker.C:
			finished, err = s.tick(ctx)
		}

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error(ctx, "stream failed", "error", err)
			s.e.setState(StateError, err)
			return
		}
		if finished {
			log.Info(ctx, "stream ended", "segments", len(s.segs), "elapsed", time.Since(s.startedAt))
			s.e.setState(StateEnded, nil)
			return
		}
	}
}

func (s *session) fetch(ctx context.Context, i int) {
	if s.segs[i].Requested || s.busy(i) {
		return
	}
	seg := s.segs[i]
	fctx, cancel := context.WithTimeout(ctx, s.e.fetchTimeout)
	s.inflight[i] = cancel
	delete(s.retry, i)

	s.e.logger.Debug(ctx, "segment fetch", "seq", i, "start", seg.Start, "end", seg.End)
	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()
		data, err := s.e.fetcher.FetchRange(fctx, seg.Start, seg.End)
		cancel()
		s.results <- fetchResult{seq: i, data: data, err: err}
	}()
}

func (s *session) handleResult(ctx context.Context, r fetchResult) error {
	delete(s.inflight, r.seq)

	if r.err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.attempts[r.seq]++
		s.e.logger.Warn(ctx, "segment fetch failed", "seq", r.seq, "attempt", s.attempts[r.seq], "error", r.err)
		if s.e.maxAttempts > 0 && s.attempts[r.seq] >= s.e.maxAttempts {
			return fmt.Errorf("%w: segment %d: %v", ErrFetchLimitExhausted, r.seq, r.err)
		}
		if !s.skippedBySeek(r.seq) {
			s.retry[r.seq] = struct{}{}
		}
		return nil
	}

	s.pending[r.seq] = r.data
	return s.appendReady(ctx)
}

// appendReady appends pending segments lowest first. A pending segment waits
// while a lower one is still in flight or waiting to be retried.
func (s *session) appendReady(ctx context.Context) error {
	for len(s.pending) > 0 {
		lowest := -1
		for seq := range s.pending {
			if lowest < 0 || seq < lowest {
				lowest = seq
			}
		}
		if s.blockedBelow(lowest) {
			return nil
		}

		seg := &s.segs[lowest]
		if err := s.buf.Append(ctx, Chunk{Sequence: lowest, Offset: seg.Start, Data: s.pending[lowest]}); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("append segment %d: %w", lowest, err)
		}
		delete(s.pending, lowest)
		seg.Requested = true
		s.e.logger.Debug(ctx, "segment appended", "seq", lowest, "bytes", seg.Len())

		if !s.playing && seg.Samples > 0 {
			if err := s.el.Play(); err != nil {
				return fmt.Errorf("start playback: %w", err)
			}
			s.playing = true
			s.e.setState(StatePlaying, nil)
		}
	}
	return nil
}

func (s *session) blockedBelow(seq int) bool {
	for i := range s.inflight {
		if i < seq && !s.skippedBySeek(i) {
			return true
		}
	}
	for i := range s.retry {
		if i < seq {
			return true
		}
	}
	return false
}

// skippedBySeek reports media segments below the last seek target. Failures
// there are left to the backfill instead of holding back the target.
func (s *session) skippedBySeek(i int) bool {
	return i >= 2 && i < s.seekFloor
}

func (s *session) dropRetriesBefore(t float64) {
	s.seekFloor, _ = s.e.policy.Locate(s.segs, t, s.meta.Duration)
	for i := range s.retry {
		if s.skippedBySeek(i) {
			delete(s.retry, i)
		}
	}
}

// tick runs the buffering policy for the current playback position.
func (s *session) tick(ctx context.Context) (bool, error) {
	t := s.el.CurrentTime()

	// init segments are retried until they land
	for i := 0; i < 2 && i < len(s.segs); i++ {
		s.fetch(ctx, i)
	}
	for i := range s.retry {
		s.fetch(ctx, i)
	}
	for _, i := range s.e.policy.Next(s.segs, s.busy, t, s.meta.Duration) {
		s.fetch(ctx, i)
	}

	cur, _ := s.e.policy.Locate(s.segs, t, s.meta.Duration)
	if cur == len(s.segs)-1 && s.segs[cur].Requested {
		// segments skipped by a forward seek are backfilled one at a time
		for i := range s.segs {
			if !s.segs[i].Requested {
				if !s.busy(i) {
					s.fetch(ctx, i)
				}
				break
			}
		}
	}
	if s.seeking && s.segs[cur].Requested && s.playing {
		s.seeking = false
		s.e.setState(StatePlaying, nil)
	}

	if cur == len(s.segs)-1 && s.allRequested() {
		if err := s.buf.EndOfStream(); err != nil {
			return false, fmt.Errorf("end of stream: %w", err)
		}
		return true, nil
	}
	return false, nil
}

func (s *session) allRequested() bool {
	for _, seg := range s.segs {
		if !seg.Requested {
			return false
		}
	}
	return true
}
