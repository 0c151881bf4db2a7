package recorder

import apperrors "github.com/murmurhq/murmur/internal/errors"

// State is the recording lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateRecording
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Lifecycle errors returned on invalid transitions. Callers match them
// with errors.Is.
var (
	ErrAlreadyActive = apperrors.New(apperrors.LifecycleInvalid, "recording already active")
	ErrNotRecording  = apperrors.New(apperrors.LifecycleInvalid, "not recording")
	ErrNotPaused     = apperrors.New(apperrors.LifecycleInvalid, "not paused")
	ErrNotActive     = apperrors.New(apperrors.LifecycleInvalid, "recording not active")
)
