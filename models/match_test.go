package models

import "testing"

func TestAppendTaint(t *testing.T) {
	s := func(v string) *string { return &v }
	tests := []struct {
		name    string
		current *string
		want    string
	}{
		{"none", nil, TaintDuplicateReport},
		{"empty", s(""), TaintDuplicateReport},
		{"keeps earlier", s(TaintMissingDuration), TaintMissingDuration + "," + TaintDuplicateReport},
		{"no repeat", s(TaintMissingDuration + "," + TaintDuplicateReport), TaintMissingDuration + "," + TaintDuplicateReport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppendTaint(tt.current, TaintDuplicateReport); got != tt.want {
				t.Errorf("AppendTaint = %q, want %q", got, tt.want)
			}
		})
	}
}
