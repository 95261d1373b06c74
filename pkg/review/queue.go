package review

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clearway/meridian/pkg/claims"
	"clearway/meridian/pkg/telemetry/metrics"
)

// Queue manages the manual review queue: dedup on enqueue, priority
// assignment, and pattern detection over rejection histories.
type Queue struct {
	store   claims.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueClock replaces the wall clock for tests.
func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

// WithQueueMetrics attaches Prometheus instrumentation.
func WithQueueMetrics(m *metrics.Metrics) QueueOption {
	return func(q *Queue) { q.metrics = m }
}

// NewQueue creates a review queue over the given store.
func NewQueue(store claims.Store, opts ...QueueOption) *Queue {
	q := &Queue{
		store:  store,
		logger: slog.Default().With("component", "review.queue"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// AddOptions carries the optional parameters of Add.
type AddOptions struct {
	// DisputeID ties the review to a dispute; items for the same
	// (user, dispute) pair are deduplicated while one is still pending.
	DisputeID string

	// Priority overrides the computed priority when set to a valid value.
	Priority claims.ReviewPriority

	// RejectionHistory seeds the item's rejection history.
	RejectionHistory []claims.Rejection
}

// Add enqueues a case for manual review and returns the review id.
//
// Enqueueing is idempotent per (user, dispute) pair: while a pending item
// exists for the pair, Add returns its id instead of creating a second one.
// The pending-uniqueness constraint at the store is authoritative; when a
// concurrent Add wins the insert race, the loser retries the lookup and
// returns the winner's id.
//
// Priority defaults to normal. Escalations become urgent, repeated
// rejections with three or more entries become high, and an explicit
// valid priority in opts wins over all of that.
func (q *Queue) Add(ctx context.Context, userID string, reviewType claims.ReviewType, reviewContext map[string]any, opts AddOptions) (string, bool) {
	if existing, err := q.store.FindPendingReview(ctx, userID, opts.DisputeID); err == nil {
		q.logger.Debug("pending review already queued",
			"review_id", existing.ID,
			"user_id", userID,
		)
		return existing.ID, true
	} else if !claims.IsNotFound(err) {
		q.logger.Error("failed to check for pending review",
			"user_id", userID,
			"error", err,
		)
		return "", false
	}

	priority := claims.PriorityNormal
	switch {
	case opts.Priority.Valid():
		priority = opts.Priority
	case reviewType == claims.ReviewTypeEscalation:
		priority = claims.PriorityUrgent
	case reviewType == claims.ReviewTypeRepeatedRejection && len(opts.RejectionHistory) >= 3:
		priority = claims.PriorityHigh
	}

	now := q.now()
	item := &claims.ReviewItem{
		ID:               uuid.New().String(),
		UserID:           userID,
		DisputeID:        opts.DisputeID,
		ReviewType:       reviewType,
		Priority:         priority,
		Status:           claims.StatusPending,
		Context:          reviewContext,
		RejectionHistory: opts.RejectionHistory,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := q.store.InsertReviewItem(ctx, item); err != nil {
		if claims.IsConflict(err) {
			// Lost the insert race; the winner's pending item is the answer.
			existing, lookupErr := q.store.FindPendingReview(ctx, userID, opts.DisputeID)
			if lookupErr == nil {
				return existing.ID, true
			}
			q.logger.Error("conflicting pending review vanished",
				"user_id", userID,
				"error", lookupErr,
			)
			return "", false
		}
		q.logger.Error("failed to enqueue review",
			"user_id", userID,
			"review_type", reviewType,
			"error", err,
		)
		return "", false
	}

	q.metrics.ReviewQueued(string(reviewType), string(priority))
	q.logger.Info("review queued",
		"review_id", item.ID,
		"user_id", userID,
		"review_type", reviewType,
		"priority", priority,
	)
	return item.ID, true
}

// FlagRepeatedRejection queues a review for a dispute that keeps getting
// rejected. The rejection history is analyzed for patterns, which are handed
// to the analyst via the review context. Five or more rejections make the
// review urgent, fewer make it high.
func (q *Queue) FlagRepeatedRejection(ctx context.Context, userID, disputeID string, history []claims.Rejection) (string, bool) {
	priority := claims.PriorityHigh
	if len(history) >= 5 {
		priority = claims.PriorityUrgent
	}

	return q.Add(ctx, userID, claims.ReviewTypeRepeatedRejection, map[string]any{
		"rejection_count":   len(history),
		"detected_patterns": DetectPatterns(history),
	}, AddOptions{
		DisputeID:        disputeID,
		Priority:         priority,
		RejectionHistory: history,
	})
}

// FlagLowConfidence queues a review for a detection the model was unsure
// about. Confidence below 0.3 makes the review high priority.
func (q *Queue) FlagLowConfidence(ctx context.Context, userID, disputeID string, confidence float64, claimData map[string]any) (string, bool) {
	priority := claims.PriorityNormal
	if confidence < 0.3 {
		priority = claims.PriorityHigh
	}

	return q.Add(ctx, userID, claims.ReviewTypeLowConfidence, map[string]any{
		"confidence": confidence,
		"claim_data": claimData,
	}, AddOptions{
		DisputeID: disputeID,
		Priority:  priority,
	})
}

// PendingReviews returns pending items sorted by priority descending, then
// created_at ascending within a tier. Fail-open on store error.
func (q *Queue) PendingReviews(ctx context.Context, filter claims.ReviewFilter) []*claims.ReviewItem {
	filter.Status = claims.StatusPending
	items, err := q.store.ListReviewItems(ctx, filter)
	if err != nil {
		q.logger.Error("failed to list pending reviews", "error", err)
		return nil
	}
	return items
}

// Assign transitions a pending review to assigned. Assigning an already
// assigned item to the same analyst is a no-op success; any other state is
// rejected.
func (q *Queue) Assign(ctx context.Context, reviewID, analystID string) bool {
	item, err := q.store.GetReviewItem(ctx, reviewID)
	if err != nil {
		q.logger.Error("failed to load review for assignment",
			"review_id", reviewID,
			"error", err,
		)
		return false
	}

	if item.Status == claims.StatusAssigned && item.AssignedTo == analystID {
		return true
	}
	if item.Status != claims.StatusPending {
		q.logger.Warn("review not assignable",
			"review_id", reviewID,
			"status", item.Status,
		)
		return false
	}

	now := q.now()
	item.Status = claims.StatusAssigned
	item.AssignedTo = analystID
	item.AssignedAt = &now
	item.UpdatedAt = now

	if err := q.store.UpdateReviewItem(ctx, item); err != nil {
		q.logger.Error("failed to assign review",
			"review_id", reviewID,
			"error", err,
		)
		return false
	}

	q.logger.Info("review assigned",
		"review_id", reviewID,
		"analyst_id", analystID,
	)
	return true
}

// Start transitions an assigned review to in_review when the analyst opens
// it. Starting an item already in review is a no-op success.
func (q *Queue) Start(ctx context.Context, reviewID string) bool {
	item, err := q.store.GetReviewItem(ctx, reviewID)
	if err != nil {
		q.logger.Error("failed to load review for start",
			"review_id", reviewID,
			"error", err,
		)
		return false
	}

	if item.Status == claims.StatusInReview {
		return true
	}
	if item.Status != claims.StatusAssigned {
		q.logger.Warn("review not startable",
			"review_id", reviewID,
			"status", item.Status,
		)
		return false
	}

	item.Status = claims.StatusInReview
	item.UpdatedAt = q.now()

	if err := q.store.UpdateReviewItem(ctx, item); err != nil {
		q.logger.Error("failed to start review",
			"review_id", reviewID,
			"error", err,
		)
		return false
	}
	return true
}

// Archive retires a review item from any non-terminal state. Archiving an
// already archived item is a no-op success; completed items stay completed.
func (q *Queue) Archive(ctx context.Context, reviewID string) bool {
	item, err := q.store.GetReviewItem(ctx, reviewID)
	if err != nil {
		q.logger.Error("failed to load review for archiving",
			"review_id", reviewID,
			"error", err,
		)
		return false
	}

	if item.Status == claims.StatusArchived {
		return true
	}
	if item.Status == claims.StatusCompleted {
		q.logger.Warn("completed review cannot be archived", "review_id", reviewID)
		return false
	}

	item.Status = claims.StatusArchived
	item.UpdatedAt = q.now()

	if err := q.store.UpdateReviewItem(ctx, item); err != nil {
		q.logger.Error("failed to archive review",
			"review_id", reviewID,
			"error", err,
		)
		return false
	}

	q.logger.Info("review archived", "review_id", reviewID)
	return true
}
