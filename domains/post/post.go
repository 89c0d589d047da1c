package post

import (
	"context"
	"time"
)

type PostStatus string

const (
	StatusScheduled  PostStatus = "scheduled"
	StatusPublishing PostStatus = "publishing"
	StatusPublished  PostStatus = "published"
	StatusFailed     PostStatus = "failed"
	StatusPaused     PostStatus = "paused"
	StatusCancelled  PostStatus = "cancelled"
)

type RecurrenceType string

const (
	RecurrenceNone    RecurrenceType = "none"
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

type ContentKind string

const (
	ContentKindText  ContentKind = "text"
	ContentKindImage ContentKind = "image"
)

// Content is a closed union: a post is either text or an image with a
// caption. Consumers are expected to type-switch over both variants.
type Content interface {
	Kind() ContentKind
	Body() string
}

type TextContent struct {
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}

func (TextContent) Kind() ContentKind { return ContentKindText }
func (c TextContent) Body() string    { return c.Message }

type ImageContent struct {
	Message  string `json:"message"`
	AltText  string `json:"alt_text,omitempty"`
	ImageRef string `json:"image_ref"`
}

func (ImageContent) Kind() ContentKind { return ContentKindImage }
func (c ImageContent) Body() string    { return c.Message }

// ScheduledPost is one occurrence of a (possibly recurring) post.
// ScheduleTime is always stored normalized to UTC; Timezone keeps the IANA
// zone the post was scheduled in so recurrence can preserve the local
// wall-clock time across DST changes. OccurrenceTime is the recurrence
// anchor: retries with backoff move ScheduleTime but never the anchor, so
// successors keep the original wall-clock pattern.
type ScheduledPost struct {
	ID              string         `json:"id"`
	Content         Content        `json:"content"`
	ScheduleTime    time.Time      `json:"schedule_time"`
	OccurrenceTime  time.Time      `json:"occurrence_time"`
	Timezone        string         `json:"timezone"`
	Recurrence      RecurrenceType `json:"recurrence"`
	RecurrenceEnd   *time.Time     `json:"recurrence_end,omitempty"`
	Status          PostStatus     `json:"status"`
	AttemptCount    int            `json:"attempt_count"`
	LastError       string         `json:"last_error,omitempty"`
	ExternalPostID  string         `json:"external_post_id,omitempty"`
	CancelRequested bool           `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type EnqueueRequest struct {
	Kind          ContentKind
	Message       string
	Link          string
	AltText       string
	ImageRef      string
	ScheduleTime  time.Time
	Timezone      string
	Recurrence    RecurrenceType
	RecurrenceEnd *time.Time
}

// UpdateRequest carries the editable fields of a post that has not been
// picked up by the scheduler yet. Nil means "leave unchanged".
type UpdateRequest struct {
	Message      *string
	ScheduleTime *time.Time
	Recurrence   *RecurrenceType
}

type CancelResult struct {
	Post ScheduledPost `json:"post"`
	// InFlight reports that the post was already being published; the
	// cancellation only takes effect once the in-flight call completes,
	// and a publish that succeeds still ends in "published".
	InFlight bool `json:"in_flight"`
}

type NextPostPreview struct {
	ID             string    `json:"id"`
	ScheduleTime   time.Time `json:"schedule_time"`
	MessagePreview string    `json:"message_preview"`
}

type QueueStats struct {
	TotalPosts      int64                `json:"total_posts"`
	StatusBreakdown map[PostStatus]int64 `json:"status_breakdown"`
	Upcoming24h     int64                `json:"upcoming_24h"`
	NextPost        *NextPostPreview     `json:"next_post,omitempty"`
}

type IQueueUsecase interface {
	Enqueue(ctx context.Context, request EnqueueRequest) (ScheduledPost, error)
	Get(ctx context.Context, id string) (ScheduledPost, error)
	List(ctx context.Context, status PostStatus, limit, offset int) ([]ScheduledPost, error)
	Update(ctx context.Context, id string, request UpdateRequest) (ScheduledPost, error)
	Cancel(ctx context.Context, id string) (CancelResult, error)
	Pause(ctx context.Context, id string) (ScheduledPost, error)
	Resume(ctx context.Context, id string) (ScheduledPost, error)
	Retry(ctx context.Context, id string) (ScheduledPost, error)
	Stats(ctx context.Context) (QueueStats, error)
}
