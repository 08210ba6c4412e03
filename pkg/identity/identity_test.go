package identity

import (
	"testing"
	"time"
)

func TestMeetsMinAge(t *testing.T) {
	cases := []struct {
		name      string
		birthDate string
		minAge    int
		want      bool
		wantErr   bool
	}{
		{"exactly min age", pastYears(19), 19, true, false},
		{"older than min age", pastYears(40), 19, true, false},
		{"younger than min age", pastYears(10), 19, false, false},
		{"malformed date", "not-a-date", 19, false, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := meetsMinAge(c.birthDate, c.minAge)
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Fatalf("meetsMinAge(%q, %d) = %v, want %v", c.birthDate, c.minAge, got, c.want)
			}
		})
	}
}

func pastYears(years int) string {
	return time.Now().UTC().AddDate(-years, 0, 0).Format("2006-01-02")
}
