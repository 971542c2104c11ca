package runner

// State is the phase a Runner is in. During a run the runner alternates
// between StateFiltering and StateSubmitting once per eligible file, so
// deletions start while later entries are still being evaluated.
type State int32

const (
	StateIdle State = iota
	StateListing
	StateFiltering
	StateSubmitting
	StateAwaitingCompletion
	StateAggregated
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListing:
		return "listing"
	case StateFiltering:
		return "filtering"
	case StateSubmitting:
		return "submitting"
	case StateAwaitingCompletion:
		return "awaiting_completion"
	case StateAggregated:
		return "aggregated"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}
