package stream

import "context"

// Chunk is one segment's decrypted bytes, appended in ascending Sequence.
type Chunk struct {
	Sequence int
	Offset   int64
	Data     []byte
}

// MediaBuffer is the playback buffer of an element.
type MediaBuffer interface {
	// Append blocks until the buffer accepts the chunk or ctx is done.
	Append(ctx context.Context, c Chunk) error
	// EndOfStream marks the buffer complete and immutable.
	EndOfStream() error
	// Close releases the buffer. It is called exactly once per session.
	Close() error
}

// Element is the handle of the video element playback is attached to.
type Element interface {
	IsTypeSupported(mimeType string) bool
	OpenBuffer(mimeType string) (MediaBuffer, error)
	CurrentTime() float64
	Seek(t float64)
	Play() error
}

// MetadataSource loads the video metadata of the selected file.
type MetadataSource interface {
	VideoMetadata(ctx context.Context) (*VideoMetadata, error)
}

// RangeFetcher returns plaintext bytes [start, end).
type RangeFetcher interface {
	FetchRange(ctx context.Context, start, end int64) ([]byte, error)
}
