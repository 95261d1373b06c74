package review

import (
	"context"

	"clearway/meridian/pkg/claims"
)

// Stats aggregates the state of the review queue.
type Stats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByType     map[string]int `json:"by_type"`
	ByPriority map[string]int `json:"by_priority"`

	// AvgResolutionHours is the mean time from creation to completion over
	// resolved items; nil while nothing has resolved.
	AvgResolutionHours *float64 `json:"avg_resolution_hours"`
}

// GetReviewStats aggregates counts by status, type, and priority plus the
// mean resolution time. Fail-open: a store error yields empty stats.
func (q *Queue) GetReviewStats(ctx context.Context) *Stats {
	stats := &Stats{
		ByStatus:   map[string]int{},
		ByType:     map[string]int{},
		ByPriority: map[string]int{},
	}

	items, err := q.store.ListReviewItems(ctx, claims.ReviewFilter{})
	if err != nil {
		q.logger.Error("failed to aggregate review stats", "error", err)
		return stats
	}

	var resolved int
	var totalHours float64
	for _, item := range items {
		stats.Total++
		stats.ByStatus[string(item.Status)]++
		stats.ByType[string(item.ReviewType)]++
		stats.ByPriority[string(item.Priority)]++

		if item.CompletedAt != nil && !item.CreatedAt.IsZero() {
			resolved++
			totalHours += item.CompletedAt.Sub(item.CreatedAt).Hours()
		}
	}
	if resolved > 0 {
		avg := totalHours / float64(resolved)
		stats.AvgResolutionHours = &avg
	}
	return stats
}
