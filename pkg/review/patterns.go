package review

import (
	"fmt"
	"strings"

	"clearway/meridian/pkg/claims"
)

// evidenceKeywords mark rejection reasons that point at missing or bad
// evidence rather than at the claim itself.
var evidenceKeywords = []string{"evidence", "proof", "document", "receipt", "photo"}

// DetectPatterns analyzes a rejection history for signals the analyst should
// see up front. A reason occurring two or more times (case-insensitive) is
// reported as repeated; any evidence-related wording is reported once.
func DetectPatterns(history []claims.Rejection) []string {
	counts := make(map[string]int)
	originals := make(map[string]string)
	for _, r := range history {
		key := strings.ToLower(strings.TrimSpace(r.Reason))
		if key == "" {
			continue
		}
		counts[key]++
		if _, seen := originals[key]; !seen {
			originals[key] = strings.TrimSpace(r.Reason)
		}
	}

	var patterns []string
	// Iterate the history rather than the map to keep output order stable.
	reported := make(map[string]bool)
	evidenceFlagged := false
	for _, r := range history {
		key := strings.ToLower(strings.TrimSpace(r.Reason))
		if key == "" {
			continue
		}
		if counts[key] >= 2 && !reported[key] {
			reported[key] = true
			patterns = append(patterns, fmt.Sprintf("Repeated: %s (%dx)", originals[key], counts[key]))
		}
		if !evidenceFlagged && containsEvidenceKeyword(key) {
			evidenceFlagged = true
			patterns = append(patterns, "Evidence-related rejections detected")
		}
	}
	return patterns
}

func containsEvidenceKeyword(reason string) bool {
	for _, kw := range evidenceKeywords {
		if strings.Contains(reason, kw) {
			return true
		}
	}
	return false
}
