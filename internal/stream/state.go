package stream

type State int

const (
	StateIdle State = iota
	StateMetadataLoading
	StateBuffering
	StatePlaying
	StateSeeking
	StateEnded
	StateError
)

var stateNames = [...]string{"idle", "metadata_loading", "buffering", "playing", "seeking", "ended", "error"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Event is emitted on every state change. Err is set for StateError.
type Event struct {
	State State
	Err   error
}
