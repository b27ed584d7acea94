package connection

import "testing"

func TestNextState(t *testing.T) {
	tests := []struct {
		name  string
		from  State
		ev    Event
		want  State
		allow bool
	}{
		{"idle connect", StateIdle, EventConnect, StateConnecting, true},
		{"closed connect", StateClosed, EventConnect, StateConnecting, true},
		{"failed connect", StateFailed, EventConnect, StateConnecting, true},
		{"connecting connect ignored", StateConnecting, EventConnect, StateConnecting, false},
		{"open connect ignored", StateOpen, EventConnect, StateOpen, false},

		{"connecting opened", StateConnecting, EventOpened, StateOpen, true},
		{"closed opened ignored", StateClosed, EventOpened, StateClosed, false},

		{"open disconnect", StateOpen, EventDisconnect, StateClosing, true},
		{"connecting disconnect", StateConnecting, EventDisconnect, StateClosing, true},
		{"closing disconnect ignored", StateClosing, EventDisconnect, StateClosing, false},

		{"open closed", StateOpen, EventClosed, StateClosed, true},
		{"connecting closed", StateConnecting, EventClosed, StateClosed, true},
		{"closing closed", StateClosing, EventClosed, StateClosed, true},
		{"idle closed ignored", StateIdle, EventClosed, StateIdle, false},

		{"connecting fail", StateConnecting, EventFail, StateFailed, true},
		{"open fail", StateOpen, EventFail, StateFailed, true},
		{"closed fail", StateClosed, EventFail, StateFailed, true},
		{"failed fail ignored", StateFailed, EventFail, StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := nextState(tt.from, tt.ev)
			if got != tt.want || ok != tt.allow {
				t.Errorf("nextState(%s, %s) = (%s, %v), want (%s, %v)",
					tt.from, tt.ev, got, ok, tt.want, tt.allow)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateIdle:       "idle",
		StateConnecting: "connecting",
		StateOpen:       "open",
		StateClosing:    "closing",
		StateClosed:     "closed",
		StateFailed:     "failed",
		State(99):       "unknown",
	}
	for s, want := range states {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
