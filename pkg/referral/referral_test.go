package referral

import "testing"

func TestComputeBonus(t *testing.T) {
	tests := []struct {
		name            string
		eligibleAmount  int64
		rate            float64
		want            int64
	}{
		{"standard rate floors down", 10050, 0.03, 301},
		{"zero eligible amount", 0, 0.05, 0},
		{"zero rate", 5000, 0, 0},
		{"influencer rate", 10000, 0.08, 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeBonus(tt.eligibleAmount, tt.rate); got != tt.want {
				t.Errorf("ComputeBonus(%d, %v) = %d, want %d", tt.eligibleAmount, tt.rate, got, tt.want)
			}
		})
	}
}

func TestRateFor(t *testing.T) {
	const standard, influencer = 0.03, 0.08

	if got := RateFor(TierStandard, standard, influencer); got != standard {
		t.Errorf("RateFor(standard) = %v, want %v", got, standard)
	}
	if got := RateFor(TierInfluencer, standard, influencer); got != influencer {
		t.Errorf("RateFor(influencer) = %v, want %v", got, influencer)
	}
}
