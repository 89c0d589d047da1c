package scheduler

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot/postpilot/core/config"
	domainPost "github.com/postpilot/postpilot/domains/post"
	"github.com/postpilot/postpilot/pkg/pubworker"
	"github.com/postpilot/postpilot/pkg/timeutils"
	"github.com/postpilot/postpilot/pkg/utils"
	"github.com/postpilot/postpilot/publisher"
	"github.com/sirupsen/logrus"
)

// Engine drives the queue: it scans for due posts on a fixed interval,
// claims them, publishes through the Publisher Client and applies the
// retry/backoff and recurrence rules. There is one logical engine per
// deployment; the claim CAS in the repository keeps overlapping ticks
// harmless anyway.
type Engine struct {
	repo    domainPost.IQueueRepository
	client  publisher.IClient
	pool    *pubworker.Pool
	emitter domainPost.IEventEmitter
	clock   timeutils.Clock

	tickInterval   time.Duration
	retryBudget    int
	backoffBase    time.Duration
	backoffCap     time.Duration
	publishTimeout time.Duration
}

func NewEngine(
	repo domainPost.IQueueRepository,
	client publisher.IClient,
	pool *pubworker.Pool,
	emitter domainPost.IEventEmitter,
	clock timeutils.Clock,
	cfg config.SchedulerConfig,
	publishTimeout time.Duration,
) *Engine {
	if emitter == nil {
		emitter = domainPost.NopEmitter{}
	}
	if clock == nil {
		clock = timeutils.System()
	}
	if publishTimeout <= 0 {
		publishTimeout = 30 * time.Second
	}
	return &Engine{
		repo:           repo,
		client:         client,
		pool:           pool,
		emitter:        emitter,
		clock:          clock,
		tickInterval:   cfg.TickInterval,
		retryBudget:    cfg.RetryBudget,
		backoffBase:    cfg.BackoffBase,
		backoffCap:     cfg.BackoffCap,
		publishTimeout: publishTimeout,
	}
}

// Start recovers posts stranded mid-publish by a previous crash, starts
// the worker pool and launches the tick loop.
func (e *Engine) Start(ctx context.Context) {
	recovered, err := e.repo.RecoverStale(ctx)
	if err != nil {
		logrus.WithError(err).Error("[SCHEDULER] Stale post recovery failed")
	}
	for _, p := range recovered {
		logrus.Warnf("[SCHEDULER] Recovered post %s stranded in publishing, rescheduled", p.ID)
		e.emitter.EmitStatusChange(domainPost.StatusEvent{
			PostID:    p.ID,
			Previous:  domainPost.StatusPublishing,
			New:       domainPost.StatusScheduled,
			Timestamp: e.clock.Now().UTC(),
		})
	}

	e.pool.Start(ctx)
	go e.loop(ctx)
}

// Stop drains the worker pool. The tick loop itself stops when the context
// passed to Start is cancelled.
func (e *Engine) Stop() {
	e.pool.Stop()
}

func (e *Engine) loop(ctx context.Context) {
	logrus.Infof("[SCHEDULER] Loop started, tick interval %s", e.tickInterval)
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("[SCHEDULER] Loop stopped")
			return
		case <-ticker.C:
			e.RunTick(ctx)
		}
	}
}

// RunTick performs one scheduling pass and returns the number of posts it
// claimed. Due items are selected in deterministic order (schedule time,
// then id); publishing itself fans out to the pool, and the tick waits for
// its whole batch so a normally completed tick never leaves a post in
// "publishing".
func (e *Engine) RunTick(ctx context.Context) int {
	now := e.clock.Now().UTC()

	due, err := e.repo.FetchDue(ctx, now)
	if err != nil {
		logrus.WithError(err).Error("[SCHEDULER] Due scan failed")
		return 0
	}
	if len(due) == 0 {
		return 0
	}
	logrus.Debugf("[SCHEDULER] Tick found %d due post(s)", len(due))

	var wg sync.WaitGroup
	claimed := 0
	for _, p := range due {
		if err := e.repo.ClaimForPublish(ctx, p.ID); err != nil {
			// Another scanner won the claim, or the post changed state
			// between the scan and now. Either way it is not ours.
			logrus.WithError(err).Debugf("[SCHEDULER] Skipping post %s", p.ID)
			continue
		}
		claimed++
		e.emitter.EmitStatusChange(domainPost.StatusEvent{
			PostID:    p.ID,
			Previous:  domainPost.StatusScheduled,
			New:       domainPost.StatusPublishing,
			Timestamp: now,
		})

		postID := p.ID
		wg.Add(1)
		job := pubworker.PublishJob{
			PostID: postID,
			Handler: func(jobCtx context.Context) error {
				defer wg.Done()
				e.process(jobCtx, postID)
				return nil
			},
		}
		if !e.pool.TryDispatch(job) {
			// Pool saturated: publish inline rather than stranding a
			// claimed post in "publishing".
			job.Handler(ctx)
		}
	}
	wg.Wait()
	return claimed
}

// process resolves one claimed post: publish, then apply the outcome
// rules. Every path out of here leaves the post in a settled state.
func (e *Engine) process(ctx context.Context, postID string) {
	p, err := e.repo.GetByID(ctx, postID)
	if err != nil {
		logrus.WithError(err).Errorf("[SCHEDULER] Claimed post %s vanished", postID)
		return
	}
	if p.Status != domainPost.StatusPublishing {
		return
	}

	p.AttemptCount++

	pubCtx, cancel := context.WithTimeout(ctx, e.publishTimeout)
	externalID, pubErr := e.publish(pubCtx, p)
	cancel()

	// A cancel can land while the call is in flight; re-read the marker so
	// the pre-publish snapshot cannot erase it on write-back.
	if fresh, err := e.repo.GetByID(ctx, p.ID); err == nil {
		p.CancelRequested = fresh.CancelRequested
	}

	now := e.clock.Now().UTC()
	if pubErr == nil {
		e.settleSuccess(ctx, p, externalID, now)
		return
	}
	e.settleFailure(ctx, p, pubErr, now)
}

func (e *Engine) publish(ctx context.Context, p domainPost.ScheduledPost) (string, error) {
	switch c := p.Content.(type) {
	case domainPost.TextContent:
		return e.client.PublishText(ctx, c.Message, c.Link)
	case domainPost.ImageContent:
		data, err := os.ReadFile(utils.MediaPath(c.ImageRef))
		if err != nil {
			return "", &publisher.PublishError{
				Kind:    publisher.KindContentRejected,
				Message: "image not readable: " + err.Error(),
			}
		}
		return e.client.PublishImage(ctx, c.Message, c.AltText, data)
	default:
		return "", &publisher.PublishError{
			Kind:    publisher.KindPermanent,
			Message: "unsupported content kind",
		}
	}
}

func (e *Engine) settleSuccess(ctx context.Context, p domainPost.ScheduledPost, externalID string, now time.Time) {
	p.Status = domainPost.StatusPublished
	p.ExternalPostID = externalID
	p.LastError = ""
	p.UpdatedAt = now
	if err := e.repo.Update(ctx, p); err != nil {
		logrus.WithError(err).Errorf("[SCHEDULER] Failed to persist publish result for %s", p.ID)
		return
	}
	logrus.Infof("[SCHEDULER] Post %s published as %s (attempt %d)", p.ID, externalID, p.AttemptCount)
	e.emitter.EmitStatusChange(domainPost.StatusEvent{
		PostID:    p.ID,
		Previous:  domainPost.StatusPublishing,
		New:       domainPost.StatusPublished,
		Timestamp: now,
	})

	if p.CancelRequested {
		// The publish was already submitted when the cancel arrived; it
		// cannot be un-published. Surface that instead of pretending.
		logrus.Warnf("[SCHEDULER] Post %s was cancelled mid-publish but the platform accepted it", p.ID)
		return
	}
	if p.Recurrence != domainPost.RecurrenceNone {
		e.scheduleSuccessor(ctx, p, now)
	}
}

func (e *Engine) settleFailure(ctx context.Context, p domainPost.ScheduledPost, pubErr error, now time.Time) {
	perr := asPublishError(pubErr)
	p.LastError = perr.Error()

	retryable := perr.Retryable()
	if perr.Kind == publisher.KindAuthExpired {
		// An expired token only earns a retry once credentials verify
		// again; otherwise this needs an operator.
		retryable = e.client.VerifyCredentials(ctx) == nil
	}

	switch {
	case p.CancelRequested:
		p.Status = domainPost.StatusCancelled
	case !retryable || p.AttemptCount >= e.retryBudget:
		p.Status = domainPost.StatusFailed
	default:
		p.Status = domainPost.StatusScheduled
		delay := backoffDelay(e.backoffBase, e.backoffCap, p.AttemptCount, perr.RetryAfter)
		p.ScheduleTime = now.Add(delay)
	}
	p.UpdatedAt = now

	if err := e.repo.Update(ctx, p); err != nil {
		logrus.WithError(err).Errorf("[SCHEDULER] Failed to persist failure for %s", p.ID)
		return
	}

	switch p.Status {
	case domainPost.StatusScheduled:
		logrus.Warnf("[SCHEDULER] Post %s failed (attempt %d/%d), retrying at %s: %s",
			p.ID, p.AttemptCount, e.retryBudget, p.ScheduleTime.Format(time.RFC3339), p.LastError)
	default:
		logrus.Errorf("[SCHEDULER] Post %s settled as %s after %d attempt(s): %s",
			p.ID, p.Status, p.AttemptCount, p.LastError)
	}
	e.emitter.EmitStatusChange(domainPost.StatusEvent{
		PostID:    p.ID,
		Previous:  domainPost.StatusPublishing,
		New:       p.Status,
		Timestamp: now,
	})
}

// scheduleSuccessor inserts the next occurrence of a recurring post as a
// fresh record with a zeroed attempt counter. The successor is derived from
// the occurrence anchor, not the schedule time, so backoff-shifted retries
// do not drift the wall-clock pattern.
func (e *Engine) scheduleSuccessor(ctx context.Context, p domainPost.ScheduledPost, now time.Time) {
	anchor := p.OccurrenceTime
	if anchor.IsZero() {
		anchor = p.ScheduleTime
	}
	next, err := timeutils.NextOccurrence(anchor, p.Recurrence, p.Timezone)
	if err != nil {
		logrus.WithError(err).Errorf("[SCHEDULER] Cannot compute successor for post %s", p.ID)
		return
	}
	if p.RecurrenceEnd != nil && !next.Before(*p.RecurrenceEnd) {
		logrus.Infof("[SCHEDULER] Recurrence for post %s ended (next %s past end %s)",
			p.ID, next.Format(time.RFC3339), p.RecurrenceEnd.Format(time.RFC3339))
		return
	}

	successor := domainPost.ScheduledPost{
		ID:             uuid.NewString(),
		Content:        p.Content,
		ScheduleTime:   next,
		OccurrenceTime: next,
		Timezone:       p.Timezone,
		Recurrence:     p.Recurrence,
		RecurrenceEnd:  p.RecurrenceEnd,
		Status:         domainPost.StatusScheduled,
		AttemptCount:   0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.repo.Create(ctx, successor); err != nil {
		logrus.WithError(err).Errorf("[SCHEDULER] Failed to insert successor of %s", p.ID)
		return
	}
	logrus.Infof("[SCHEDULER] Post %s recurs: successor %s scheduled for %s",
		p.ID, successor.ID, next.Format(time.RFC3339))
}

func asPublishError(err error) *publisher.PublishError {
	var perr *publisher.PublishError
	if errors.As(err, &perr) {
		return perr
	}
	return &publisher.PublishError{
		Kind:    publisher.KindTransientNetwork,
		Message: err.Error(),
	}
}
