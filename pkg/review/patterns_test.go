package review

import (
	"strings"
	"testing"

	"clearway/meridian/pkg/claims"
)

func TestDetectPatterns(t *testing.T) {
	tests := []struct {
		name    string
		history []claims.Rejection
		want    []string
	}{
		{
			name:    "empty history yields no patterns",
			history: nil,
			want:    nil,
		},
		{
			name: "single reasons yield no repeat pattern",
			history: []claims.Rejection{
				{Reason: "wrong amount"},
				{Reason: "late filing"},
			},
			want: nil,
		},
		{
			name: "case-insensitive repeat detection",
			history: []claims.Rejection{
				{Reason: "Wrong Amount"},
				{Reason: "wrong amount"},
			},
			want: []string{"Repeated: Wrong Amount (2x)"},
		},
		{
			name: "evidence keyword flagged once",
			history: []claims.Rejection{
				{Reason: "missing proof of delivery"},
				{Reason: "no receipt attached"},
			},
			want: []string{"Evidence-related rejections detected"},
		},
		{
			name: "repeat and evidence flags combine",
			history: []claims.Rejection{
				{Reason: "missing evidence"},
				{Reason: "missing evidence"},
				{Reason: "missing evidence"},
			},
			want: []string{
				"Repeated: missing evidence (3x)",
				"Evidence-related rejections detected",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectPatterns(tt.history)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d patterns %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("pattern %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDetectPatternsBlankReasonsIgnored(t *testing.T) {
	got := DetectPatterns([]claims.Rejection{
		{Reason: "  "},
		{Reason: ""},
		{Reason: ""},
	})
	if len(got) != 0 {
		t.Errorf("blank reasons produced patterns: %v", got)
	}
}

func TestDetectPatternsOutputOrderStable(t *testing.T) {
	history := []claims.Rejection{
		{Reason: "late filing"},
		{Reason: "wrong amount"},
		{Reason: "late filing"},
		{Reason: "wrong amount"},
	}
	got := DetectPatterns(history)
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
	if !strings.Contains(got[0], "late filing") || !strings.Contains(got[1], "wrong amount") {
		t.Errorf("patterns not in first-seen order: %v", got)
	}
}
