package stream

import "errors"

var (
	ErrUnsupportedCodec    = errors.New("unsupported codec")
	ErrInvalidMetadata     = errors.New("invalid video metadata")
	ErrNotAttached         = errors.New("no element attached")
	ErrAlreadyStarted      = errors.New("playback already started")
	ErrNotRunning          = errors.New("playback not running")
	ErrDisposed            = errors.New("engine disposed")
	ErrFetchLimitExhausted = errors.New("segment fetch attempts exhausted")
)
