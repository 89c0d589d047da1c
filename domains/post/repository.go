package post

import (
	"context"
	"time"
)

// IQueueRepository is the durable queue store. Every mutation is flushed
// before the call returns and each record is written as a whole, never as a
// field-level patch.
type IQueueRepository interface {
	Init(ctx context.Context) error

	Create(ctx context.Context, p ScheduledPost) error
	GetByID(ctx context.Context, id string) (ScheduledPost, error)
	// Update replaces the stored record with p as-is (full-record write).
	Update(ctx context.Context, p ScheduledPost) error

	// List returns a page of posts. Scheduled posts come newest
	// schedule-time first, everything else most recently updated first.
	List(ctx context.Context, status PostStatus, limit, offset int) ([]ScheduledPost, error)

	// FetchDue returns scheduled posts with schedule_time <= asOf, ordered
	// by schedule_time ascending, id ascending.
	FetchDue(ctx context.Context, asOf time.Time) ([]ScheduledPost, error)

	// ClaimForPublish atomically moves a post from "scheduled" to
	// "publishing". When two scanners race on the same post exactly one
	// claim succeeds; the loser gets an InvalidTransitionError.
	ClaimForPublish(ctx context.Context, id string) error

	// Transition performs a validated read-modify-write of the status and
	// returns the updated record.
	Transition(ctx context.Context, id string, to PostStatus) (ScheduledPost, error)

	// RequestCancel cancels a scheduled/paused/failed post, or marks an
	// in-flight (publishing) post for cancellation once the publish call
	// completes. The bool reports the in-flight case.
	RequestCancel(ctx context.Context, id string) (ScheduledPost, bool, error)

	// RecoverStale returns every post stranded in "publishing" (crash
	// mid-publish) to "scheduled" and reports what was recovered.
	RecoverStale(ctx context.Context) ([]ScheduledPost, error)

	CountByStatus(ctx context.Context) (map[PostStatus]int64, error)
	UpcomingWithin(ctx context.Context, from, to time.Time) ([]ScheduledPost, error)
}
