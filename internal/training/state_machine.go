package training

import "log"

// RunState represents valid holistic-run states.
type RunState string

const (
	StateIdle          RunState = "idle"
	StateHarvesting    RunState = "harvesting"
	StateValidating    RunState = "validating"
	StateTraining      RunState = "training"
	StateProductionRun RunState = "production_run"
	StateMonitoring    RunState = "monitoring"
	StateCleanup       RunState = "cleanup"
)

// validTransitions defines the allowed run-state transitions. The pipeline
// only moves forward; the optional production run may be skipped.
var validTransitions = map[RunState]map[RunState]bool{
	StateIdle: {
		StateHarvesting: true,
	},
	StateHarvesting: {
		StateValidating: true,
		StateIdle:       true, // fatal error before any training
	},
	StateValidating: {
		StateTraining: true,
		StateIdle:     true,
	},
	StateTraining: {
		StateProductionRun: true,
		StateMonitoring:    true, // production run disabled
		StateIdle:          true,
	},
	StateProductionRun: {
		StateMonitoring: true,
	},
	StateMonitoring: {
		StateCleanup: true,
	},
	StateCleanup: {
		StateIdle: true,
	},
}

// Transition validates and performs a run-state transition. Returns the
// new state if valid, or the current state if the transition is invalid.
func Transition(current, desired RunState) RunState {
	allowed, exists := validTransitions[current]
	if !exists || !allowed[desired] {
		log.Printf("⚠️ [TRAINER] Invalid run transition: %s → %s (rejected)", current, desired)
		return current
	}
	return desired
}
