package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventListen)
	require.NoError(t, err)
	require.Equal(t, StateListening, next)

	next, err = Transition(next, EventWake)
	require.NoError(t, err)
	require.Equal(t, StateRecording, next)

	next, err = Transition(next, EventCaptured)
	require.NoError(t, err)
	require.Equal(t, StateThinking, next)

	next, err = Transition(next, EventReply)
	require.NoError(t, err)
	require.Equal(t, StateSpeaking, next)

	next, err = Transition(next, EventSpoken)
	require.NoError(t, err)
	require.Equal(t, StateListening, next)
}

func TestTransitionFailFromAnyStateGoesError(t *testing.T) {
	states := []State{StateIdle, StateListening, StateRecording, StateThinking, StateSpeaking, StateError}
	for _, state := range states {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateError, next)
	}
}

func TestTransitionMatrix(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle wake invalid", state: StateIdle, event: EventWake, want: StateIdle, wantErr: true},
		{name: "idle halt invalid", state: StateIdle, event: EventHalt, want: StateIdle, wantErr: true},
		{name: "listening halt valid", state: StateListening, event: EventHalt, want: StateIdle, wantErr: false},
		{name: "listening captured invalid", state: StateListening, event: EventCaptured, want: StateListening, wantErr: true},
		{name: "recording cancel valid", state: StateRecording, event: EventCancel, want: StateListening, wantErr: false},
		{name: "recording reply invalid", state: StateRecording, event: EventReply, want: StateRecording, wantErr: true},
		{name: "thinking cancel valid", state: StateThinking, event: EventCancel, want: StateListening, wantErr: false},
		{name: "speaking cancel valid", state: StateSpeaking, event: EventCancel, want: StateListening, wantErr: false},
		{name: "speaking wake invalid", state: StateSpeaking, event: EventWake, want: StateSpeaking, wantErr: true},
		{name: "error reset valid", state: StateError, event: EventReset, want: StateIdle, wantErr: false},
		{name: "error listen invalid", state: StateError, event: EventListen, want: StateError, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventListen)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}
