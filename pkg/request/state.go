package request

type State int

const (
	StateNew State = iota
	StateQueued
	StateProcessing
	StateWaitingOnChildren
	StateFinished
	StateChildError
	StateTimeout
	StateError
	StateDeleted
)

var stateNames = [...]string{
	StateNew:               "new",
	StateQueued:            "queued",
	StateProcessing:        "processing",
	StateWaitingOnChildren: "waiting-on-children",
	StateFinished:          "finished",
	StateChildError:        "child-error",
	StateTimeout:           "timeout",
	StateError:             "error",
	StateDeleted:           "deleted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// IsTerminal is true for Finished, Error and Deleted.
func (s State) IsTerminal() bool {
	switch s {
	case StateFinished, StateError, StateDeleted:
		return true
	default:
		return false
	}
}
