package shop

import "testing"

func TestShop_Bookable(t *testing.T) {
	tests := []struct {
		name         string
		status       string
		verification string
		want         bool
	}{
		{"active and verified", StatusActive, VerificationVerified, true},
		{"active but pending verification", StatusActive, VerificationPending, false},
		{"verified but suspended", StatusSuspended, VerificationVerified, false},
		{"pending and pending", StatusPending, VerificationPending, false},
		{"deleted and rejected still false", StatusDeleted, VerificationRejected, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh := Shop{Status: tt.status, Verification: tt.verification}
			if got := sh.Bookable(); got != tt.want {
				t.Errorf("Bookable() = %v, want %v", got, tt.want)
			}
		})
	}
}
