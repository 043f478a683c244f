package training

import "testing"

func TestTransition_ForwardPath(t *testing.T) {
	path := []RunState{
		StateIdle,
		StateHarvesting,
		StateValidating,
		StateTraining,
		StateProductionRun,
		StateMonitoring,
		StateCleanup,
		StateIdle,
	}
	current := path[0]
	for _, next := range path[1:] {
		got := Transition(current, next)
		if got != next {
			t.Fatalf("expected %s → %s to be valid, stayed at %s", current, next, got)
		}
		current = got
	}
}

func TestTransition_ProductionRunIsSkippable(t *testing.T) {
	if got := Transition(StateTraining, StateMonitoring); got != StateMonitoring {
		t.Errorf("expected training → monitoring to be valid, got %s", got)
	}
}

func TestTransition_RejectsBackwards(t *testing.T) {
	cases := []struct {
		from, to RunState
	}{
		{StateValidating, StateHarvesting},
		{StateTraining, StateValidating},
		{StateMonitoring, StateTraining},
		{StateCleanup, StateHarvesting},
		{StateIdle, StateTraining},
		{StateProductionRun, StateIdle},
	}
	for _, tc := range cases {
		if got := Transition(tc.from, tc.to); got != tc.from {
			t.Errorf("expected %s → %s to be rejected, got %s", tc.from, tc.to, got)
		}
	}
}

func TestTransition_EarlyExitToIdle(t *testing.T) {
	for _, from := range []RunState{StateHarvesting, StateValidating, StateTraining} {
		if got := Transition(from, StateIdle); got != StateIdle {
			t.Errorf("expected %s → idle to be valid, got %s", from, got)
		}
	}
}
