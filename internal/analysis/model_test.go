package analysis

import "testing"

func TestDeriveJobStatus(t *testing.T) {
	cases := []struct {
		name  string
		units []UnitStatus
		want  JobStatus
	}{
		{"no units", nil, JobPending},
		{"all pending", []UnitStatus{UnitPending, UnitPending}, JobPending},
		{"one running", []UnitStatus{UnitRunning, UnitPending}, JobProcessing},
		{"mixed terminal and pending", []UnitStatus{UnitCompleted, UnitPending}, JobProcessing},
		{"all completed", []UnitStatus{UnitCompleted, UnitCompleted}, JobCompleted},
		{"partial failure still completes", []UnitStatus{UnitCompleted, UnitFailed}, JobCompleted},
		{"all failed", []UnitStatus{UnitFailed, UnitFailed}, JobFailed},
		{"single failed", []UnitStatus{UnitFailed}, JobFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			units := make([]Unit, len(tc.units))
			for i, s := range tc.units {
				units[i] = Unit{ID: "u", Status: s}
			}
			if got := DeriveJobStatus(units); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
