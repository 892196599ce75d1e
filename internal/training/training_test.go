// SPDX-License-Identifier: MPL-2.0

package training

import "testing"

func TestPipelineState_Terminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state PipelineState
		want  bool
	}{
		{StateSucceeded, true},
		{StateFailed, true},
		{StateCancelled, true},
		{"PipelineState.PIPELINE_STATE_SUCCEEDED", true},
		{StateRunning, false},
		{StatePending, false},
		{StateCancelling, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.want {
			t.Errorf("%q.Terminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestPipelineState_Normalize(t *testing.T) {
	t.Parallel()

	if got := PipelineState("PipelineState.PIPELINE_STATE_RUNNING").Normalize(); got != StateRunning {
		t.Errorf("Normalize() = %q, want %q", got, StateRunning)
	}
	if got := StateFailed.Normalize(); got != StateFailed {
		t.Errorf("Normalize() = %q, want %q", got, StateFailed)
	}
}
