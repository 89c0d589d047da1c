package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot/postpilot/core/config"
	domainPost "github.com/postpilot/postpilot/domains/post"
	pkgError "github.com/postpilot/postpilot/pkg/error"
	"github.com/postpilot/postpilot/pkg/timeutils"
	"github.com/postpilot/postpilot/validations"
	"github.com/sirupsen/logrus"
)

type serviceQueue struct {
	repo    domainPost.IQueueRepository
	emitter domainPost.IEventEmitter
	clock   timeutils.Clock
	minLead time.Duration
	maxLead time.Duration
}

func NewQueueService(
	repo domainPost.IQueueRepository,
	emitter domainPost.IEventEmitter,
	clock timeutils.Clock,
	cfg config.SchedulerConfig,
) domainPost.IQueueUsecase {
	if emitter == nil {
		emitter = domainPost.NopEmitter{}
	}
	if clock == nil {
		clock = timeutils.System()
	}
	return &serviceQueue{
		repo:    repo,
		emitter: emitter,
		clock:   clock,
		minLead: cfg.MinLeadTime,
		maxLead: cfg.MaxLeadTime,
	}
}

// Enqueue validates and admits a post. Validation failures are returned
// synchronously and never enter the queue.
func (s *serviceQueue) Enqueue(ctx context.Context, request domainPost.EnqueueRequest) (domainPost.ScheduledPost, error) {
	if request.Recurrence == "" {
		request.Recurrence = domainPost.RecurrenceNone
	}
	if request.Timezone == "" {
		request.Timezone = "UTC"
	}

	if err := validations.ValidateEnqueueRequest(ctx, request); err != nil {
		return domainPost.ScheduledPost{}, err
	}
	if _, err := time.LoadLocation(request.Timezone); err != nil {
		return domainPost.ScheduledPost{}, pkgError.ValidationError(
			fmt.Sprintf("invalid timezone %q", request.Timezone))
	}
	if err := s.validateLeadTime(request.ScheduleTime); err != nil {
		return domainPost.ScheduledPost{}, err
	}

	content, err := buildContent(request)
	if err != nil {
		return domainPost.ScheduledPost{}, err
	}
	if err := validations.ValidatePostContent(content); err != nil {
		return domainPost.ScheduledPost{}, err
	}

	now := s.clock.Now().UTC()
	p := domainPost.ScheduledPost{
		ID:             uuid.NewString(),
		Content:        content,
		ScheduleTime:   request.ScheduleTime.UTC(),
		OccurrenceTime: request.ScheduleTime.UTC(),
		Timezone:       request.Timezone,
		Recurrence:     request.Recurrence,
		RecurrenceEnd:  request.RecurrenceEnd,
		Status:         domainPost.StatusScheduled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return domainPost.ScheduledPost{}, err
	}

	logrus.Infof("[QUEUE] Scheduled %s post %s for %s", content.Kind(), p.ID,
		p.ScheduleTime.Format(time.RFC3339))
	return p, nil
}

func (s *serviceQueue) Get(ctx context.Context, id string) (domainPost.ScheduledPost, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *serviceQueue) List(ctx context.Context, status domainPost.PostStatus, limit, offset int) ([]domainPost.ScheduledPost, error) {
	if status != "" && !domainPost.ValidStatus(status) {
		return nil, pkgError.ValidationError(fmt.Sprintf("unknown status %q", status))
	}
	return s.repo.List(ctx, status, limit, offset)
}

// Update edits a post that the scheduler has not picked up yet.
func (s *serviceQueue) Update(ctx context.Context, id string, request domainPost.UpdateRequest) (domainPost.ScheduledPost, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domainPost.ScheduledPost{}, err
	}
	if p.Status != domainPost.StatusScheduled && p.Status != domainPost.StatusPaused {
		return domainPost.ScheduledPost{}, pkgError.InvalidTransitionError(
			fmt.Sprintf("post %s is %s and cannot be edited", id, p.Status))
	}

	if request.Message != nil {
		switch c := p.Content.(type) {
		case domainPost.TextContent:
			c.Message = *request.Message
			p.Content = c
		case domainPost.ImageContent:
			c.Message = *request.Message
			p.Content = c
		}
		if err := validations.ValidatePostContent(p.Content); err != nil {
			return domainPost.ScheduledPost{}, err
		}
	}
	if request.ScheduleTime != nil {
		if err := s.validateLeadTime(*request.ScheduleTime); err != nil {
			return domainPost.ScheduledPost{}, err
		}
		p.ScheduleTime = request.ScheduleTime.UTC()
		p.OccurrenceTime = request.ScheduleTime.UTC()
	}
	if request.Recurrence != nil {
		if !domainPost.ValidRecurrence(*request.Recurrence) {
			return domainPost.ScheduledPost{}, pkgError.ValidationError(
				fmt.Sprintf("unknown recurrence %q", *request.Recurrence))
		}
		p.Recurrence = *request.Recurrence
	}

	p.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return domainPost.ScheduledPost{}, err
	}
	logrus.Infof("[QUEUE] Updated post %s", id)
	return p, nil
}

func (s *serviceQueue) Cancel(ctx context.Context, id string) (domainPost.CancelResult, error) {
	prev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domainPost.CancelResult{}, err
	}
	updated, inFlight, err := s.repo.RequestCancel(ctx, id)
	if err != nil {
		return domainPost.CancelResult{}, err
	}
	if inFlight {
		logrus.Warnf("[QUEUE] Post %s is mid-publish; cancellation deferred until the call completes", id)
	} else {
		s.emitter.EmitStatusChange(domainPost.StatusEvent{
			PostID:    id,
			Previous:  prev.Status,
			New:       updated.Status,
			Timestamp: s.clock.Now().UTC(),
		})
		logrus.Infof("[QUEUE] Cancelled post %s", id)
	}
	return domainPost.CancelResult{Post: updated, InFlight: inFlight}, nil
}

func (s *serviceQueue) Pause(ctx context.Context, id string) (domainPost.ScheduledPost, error) {
	return s.transition(ctx, id, domainPost.StatusPaused)
}

// Resume only applies to paused posts. Failed posts go back through Retry,
// which resets the attempt counter; resuming one would re-fail immediately.
func (s *serviceQueue) Resume(ctx context.Context, id string) (domainPost.ScheduledPost, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domainPost.ScheduledPost{}, err
	}
	if p.Status != domainPost.StatusPaused {
		return domainPost.ScheduledPost{}, pkgError.InvalidTransitionError(
			fmt.Sprintf("post %s is %s, only paused posts can be resumed", id, p.Status))
	}
	return s.transition(ctx, id, domainPost.StatusScheduled)
}

// Retry puts a failed post back in the queue for an operator, due
// immediately and with a fresh retry budget.
func (s *serviceQueue) Retry(ctx context.Context, id string) (domainPost.ScheduledPost, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domainPost.ScheduledPost{}, err
	}
	if p.Status != domainPost.StatusFailed {
		return domainPost.ScheduledPost{}, pkgError.InvalidTransitionError(
			fmt.Sprintf("post %s is %s, only failed posts can be retried", id, p.Status))
	}

	now := s.clock.Now().UTC()
	prev := p.Status
	p.Status = domainPost.StatusScheduled
	p.AttemptCount = 0
	p.ScheduleTime = now
	p.UpdatedAt = now
	if err := s.repo.Update(ctx, p); err != nil {
		return domainPost.ScheduledPost{}, err
	}
	s.emitter.EmitStatusChange(domainPost.StatusEvent{
		PostID:    id,
		Previous:  prev,
		New:       p.Status,
		Timestamp: now,
	})
	logrus.Infof("[QUEUE] Post %s queued for manual retry", id)
	return p, nil
}

func (s *serviceQueue) Stats(ctx context.Context) (domainPost.QueueStats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return domainPost.QueueStats{}, err
	}

	stats := domainPost.QueueStats{StatusBreakdown: counts}
	for _, n := range counts {
		stats.TotalPosts += n
	}

	now := s.clock.Now().UTC()
	upcoming, err := s.repo.UpcomingWithin(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		return domainPost.QueueStats{}, err
	}
	stats.Upcoming24h = int64(len(upcoming))
	if len(upcoming) > 0 {
		next := upcoming[0]
		stats.NextPost = &domainPost.NextPostPreview{
			ID:             next.ID,
			ScheduleTime:   next.ScheduleTime,
			MessagePreview: preview(next.Content.Body(), 50),
		}
	}
	return stats, nil
}

func (s *serviceQueue) transition(ctx context.Context, id string, to domainPost.PostStatus) (domainPost.ScheduledPost, error) {
	prev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domainPost.ScheduledPost{}, err
	}
	updated, err := s.repo.Transition(ctx, id, to)
	if err != nil {
		return domainPost.ScheduledPost{}, err
	}
	s.emitter.EmitStatusChange(domainPost.StatusEvent{
		PostID:    id,
		Previous:  prev.Status,
		New:       to,
		Timestamp: s.clock.Now().UTC(),
	})
	logrus.Infof("[QUEUE] Post %s: %s -> %s", id, prev.Status, to)
	return updated, nil
}

func (s *serviceQueue) validateLeadTime(scheduleTime time.Time) error {
	now := s.clock.Now().UTC()
	if scheduleTime.Before(now.Add(s.minLead)) {
		return pkgError.ValidationError(
			fmt.Sprintf("schedule time must be at least %s from now", s.minLead))
	}
	if s.maxLead > 0 && scheduleTime.After(now.Add(s.maxLead)) {
		return pkgError.ValidationError(
			fmt.Sprintf("schedule time cannot be more than %s in the future", s.maxLead))
	}
	return nil
}

func buildContent(request domainPost.EnqueueRequest) (domainPost.Content, error) {
	switch request.Kind {
	case domainPost.ContentKindText:
		return domainPost.TextContent{Message: request.Message, Link: request.Link}, nil
	case domainPost.ContentKindImage:
		return domainPost.ImageContent{
			Message:  request.Message,
			AltText:  request.AltText,
			ImageRef: request.ImageRef,
		}, nil
	default:
		return nil, pkgError.ValidationError(fmt.Sprintf("unknown content kind %q", request.Kind))
	}
}

// preview truncates on rune boundaries so multi-byte text is never split
// mid-character.
func preview(message string, max int) string {
	runes := []rune(message)
	if len(runes) <= max {
		return message
	}
	return string(runes[:max]) + "..."
}
