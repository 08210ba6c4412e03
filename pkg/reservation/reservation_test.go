package reservation

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"requested to confirmed", StatusRequested, StatusConfirmed, true},
		{"requested to expired", StatusRequested, StatusExpired, true},
		{"requested to in_progress directly", StatusRequested, StatusInProgress, false},
		{"confirmed to in_progress", StatusConfirmed, StatusInProgress, true},
		{"confirmed to no_show", StatusConfirmed, StatusNoShow, true},
		{"in_progress to completed", StatusInProgress, StatusCompleted, true},
		{"completed to anything", StatusCompleted, StatusConfirmed, false},
		{"unknown status", "bogus", StatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []string{StatusCompleted, StatusCancelledByUser, StatusCancelledByShop, StatusNoShow, StatusExpired}
	for _, s := range terminal {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = false, want true", s)
		}
	}

	nonTerminal := []string{StatusRequested, StatusConfirmed, StatusInProgress}
	for _, s := range nonTerminal {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = true, want false", s)
		}
	}
}
