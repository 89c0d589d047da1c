package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/postpilot/postpilot/core/config"
	domainPost "github.com/postpilot/postpilot/domains/post"
	pkgError "github.com/postpilot/postpilot/pkg/error"
	"github.com/postpilot/postpilot/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type recordingEmitter struct {
	mu     sync.Mutex
	events []domainPost.StatusEvent
}

func (r *recordingEmitter) EmitStatusChange(e domainPost.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) all() []domainPost.StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domainPost.StatusEvent(nil), r.events...)
}

var usecaseDBCounter int

func newTestService(t *testing.T) (domainPost.IQueueUsecase, domainPost.IQueueRepository, *fakeClock, *recordingEmitter) {
	t.Helper()

	usecaseDBCounter++
	dsn := fmt.Sprintf("file:usecase_test_%d?mode=memory&cache=shared", usecaseDBCounter)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := repository.NewQueueGormRepository(db)
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	emitter := &recordingEmitter{}
	cfg := config.SchedulerConfig{
		MinLeadTime: 10 * time.Minute,
		MaxLeadTime: 365 * 24 * time.Hour,
	}
	return NewQueueService(repo, emitter, clock, cfg), repo, clock, emitter
}

func validEnqueue(clock *fakeClock) domainPost.EnqueueRequest {
	return domainPost.EnqueueRequest{
		Kind:         domainPost.ContentKindText,
		Message:      "product launch at noon",
		ScheduleTime: clock.now.Add(time.Hour),
	}
}

func TestEnqueueSuccess(t *testing.T) {
	service, _, clock, _ := newTestService(t)

	p, err := service.Enqueue(context.Background(), validEnqueue(clock))
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected generated id")
	}
	if p.Status != domainPost.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", p.Status)
	}
	if p.Timezone != "UTC" {
		t.Fatalf("expected UTC default timezone, got %s", p.Timezone)
	}
	if p.Recurrence != domainPost.RecurrenceNone {
		t.Fatalf("expected none default recurrence, got %s", p.Recurrence)
	}

	got, err := service.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Content.Body() != "product launch at noon" {
		t.Fatalf("unexpected body %q", got.Content.Body())
	}
}

func TestEnqueueRejectsShortLeadTime(t *testing.T) {
	service, _, clock, _ := newTestService(t)

	request := validEnqueue(clock)
	request.ScheduleTime = clock.now.Add(5 * time.Minute)

	_, err := service.Enqueue(context.Background(), request)
	if _, ok := err.(pkgError.ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestEnqueueRejectsFarFuture(t *testing.T) {
	service, _, clock, _ := newTestService(t)

	request := validEnqueue(clock)
	request.ScheduleTime = clock.now.Add(366 * 24 * time.Hour)

	_, err := service.Enqueue(context.Background(), request)
	if _, ok := err.(pkgError.ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestEnqueueRejectsBadTimezone(t *testing.T) {
	service, _, clock, _ := newTestService(t)

	request := validEnqueue(clock)
	request.Timezone = "Mars/Olympus"

	_, err := service.Enqueue(context.Background(), request)
	if _, ok := err.(pkgError.ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestEnqueueRejectsEmptyMessage(t *testing.T) {
	service, _, clock, _ := newTestService(t)

	request := validEnqueue(clock)
	request.Message = ""

	if _, err := service.Enqueue(context.Background(), request); err == nil {
		t.Fatal("expected validation error for empty message")
	}
}

func TestUpdateScheduledPost(t *testing.T) {
	service, _, clock, _ := newTestService(t)
	ctx := context.Background()

	p, err := service.Enqueue(ctx, validEnqueue(clock))
	if err != nil {
		t.Fatal(err)
	}

	newMessage := "rescheduled launch"
	newTime := clock.now.Add(2 * time.Hour)
	updated, err := service.Update(ctx, p.ID, domainPost.UpdateRequest{
		Message:      &newMessage,
		ScheduleTime: &newTime,
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Content.Body() != newMessage {
		t.Fatalf("message not updated: %q", updated.Content.Body())
	}
	if !updated.ScheduleTime.Equal(newTime) {
		t.Fatalf("schedule time not updated: %v", updated.ScheduleTime)
	}
}

func TestUpdateRejectedAfterPickup(t *testing.T) {
	service, repo, clock, _ := newTestService(t)
	ctx := context.Background()

	p, err := service.Enqueue(ctx, validEnqueue(clock))
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.ClaimForPublish(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	msg := "too late"
	_, err = service.Update(ctx, p.ID, domainPost.UpdateRequest{Message: &msg})
	if _, ok := err.(pkgError.InvalidTransitionError); !ok {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestCancelScheduled(t *testing.T) {
	service, _, clock, emitter := newTestService(t)
	ctx := context.Background()

	p, err := service.Enqueue(ctx, validEnqueue(clock))
	if err != nil {
		t.Fatal(err)
	}

	result, err := service.Cancel(ctx, p.ID)
	if err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if result.InFlight {
		t.Fatal("scheduled post should not be in flight")
	}
	if result.Post.Status != domainPost.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", result.Post.Status)
	}

	events := emitter.all()
	if len(events) != 1 || events[0].New != domainPost.StatusCancelled {
		t.Fatalf("expected one cancellation event, got %+v", events)
	}
}

func TestCancelInFlightDefers(t *testing.T) {
	service, repo, clock, emitter := newTestService(t)
	ctx := context.Background()

	p, err := service.Enqueue(ctx, validEnqueue(clock))
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.ClaimForPublish(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	result, err := service.Cancel(ctx, p.ID)
	if err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if !result.InFlight {
		t.Fatal("expected in-flight cancellation")
	}
	if !result.Post.CancelRequested {
		t.Fatal("cancel_requested should be set")
	}
	// No status change happened yet, so no event either.
	if events := emitter.all(); len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
}

func TestPauseResume(t *testing.T) {
	service, _, clock, _ := newTestService(t)
	ctx := context.Background()

	p, err := service.Enqueue(ctx, validEnqueue(clock))
	if err != nil {
		t.Fatal(err)
	}

	paused, err := service.Pause(ctx, p.ID)
	if err != nil {
		t.Fatalf("Pause() error: %v", err)
	}
	if paused.Status != domainPost.StatusPaused {
		t.Fatalf("expected paused, got %s", paused.Status)
	}

	resumed, err := service.Resume(ctx, p.ID)
	if err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	if resumed.Status != domainPost.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", resumed.Status)
	}
}

func TestRetryResetsAttempts(t *testing.T) {
	service, repo, clock, _ := newTestService(t)
	ctx := context.Background()

	p, err := service.Enqueue(ctx, validEnqueue(clock))
	if err != nil {
		t.Fatal(err)
	}
	p, err = repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	p.Status = domainPost.StatusFailed
	p.AttemptCount = 3
	p.LastError = "rate limited"
	if err := repo.Update(ctx, p); err != nil {
		t.Fatal(err)
	}

	retried, err := service.Retry(ctx, p.ID)
	if err != nil {
		t.Fatalf("Retry() error: %v", err)
	}
	if retried.Status != domainPost.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", retried.Status)
	}
	if retried.AttemptCount != 0 {
		t.Fatalf("attempts should reset, got %d", retried.AttemptCount)
	}
	if !retried.ScheduleTime.Equal(clock.now) {
		t.Fatalf("retry should be due immediately, got %v", retried.ScheduleTime)
	}
}

func TestRetryOnlyForFailed(t *testing.T) {
	service, _, clock, _ := newTestService(t)
	ctx := context.Background()

	p, err := service.Enqueue(ctx, validEnqueue(clock))
	if err != nil {
		t.Fatal(err)
	}

	_, err = service.Retry(ctx, p.ID)
	if _, ok := err.(pkgError.InvalidTransitionError); !ok {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestStats(t *testing.T) {
	service, _, clock, _ := newTestService(t)
	ctx := context.Background()

	first, err := service.Enqueue(ctx, validEnqueue(clock))
	if err != nil {
		t.Fatal(err)
	}

	second := validEnqueue(clock)
	second.Message = "way out post"
	second.ScheduleTime = clock.now.Add(72 * time.Hour)
	if _, err := service.Enqueue(ctx, second); err != nil {
		t.Fatal(err)
	}

	stats, err := service.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.TotalPosts != 2 {
		t.Fatalf("expected 2 posts, got %d", stats.TotalPosts)
	}
	if stats.StatusBreakdown[domainPost.StatusScheduled] != 2 {
		t.Fatalf("unexpected breakdown: %v", stats.StatusBreakdown)
	}
	if stats.Upcoming24h != 1 {
		t.Fatalf("expected 1 upcoming post, got %d", stats.Upcoming24h)
	}
	if stats.NextPost == nil || stats.NextPost.ID != first.ID {
		t.Fatalf("unexpected next post: %+v", stats.NextPost)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	service, _, _, _ := newTestService(t)

	_, err := service.List(context.Background(), domainPost.PostStatus("draft"), 0, 0)
	if _, ok := err.(pkgError.ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestResumeOnlyForPaused(t *testing.T) {
	service, repo, clock, emitter := newTestService(t)
	ctx := context.Background()

	p, err := service.Enqueue(ctx, validEnqueue(clock))
	if err != nil {
		t.Fatal(err)
	}
	p, err = repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	p.Status = domainPost.StatusFailed
	p.AttemptCount = 3
	if err := repo.Update(ctx, p); err != nil {
		t.Fatal(err)
	}

	_, err = service.Resume(ctx, p.ID)
	if _, ok := err.(pkgError.InvalidTransitionError); !ok {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domainPost.StatusFailed {
		t.Fatalf("failed post must stay failed, got %s", got.Status)
	}
	if got.AttemptCount != 3 {
		t.Fatalf("resume must not touch attempts, got %d", got.AttemptCount)
	}
	if len(emitter.all()) != 0 {
		t.Fatalf("no event expected, got %v", emitter.all())
	}
}

func TestStatsPreviewKeepsRunesWhole(t *testing.T) {
	service, _, clock, _ := newTestService(t)
	ctx := context.Background()

	request := validEnqueue(clock)
	request.Message = strings.Repeat("día", 30) // 90 runes, 120 bytes
	if _, err := service.Enqueue(ctx, request); err != nil {
		t.Fatal(err)
	}

	stats, err := service.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.NextPost == nil {
		t.Fatal("expected a next post preview")
	}
	got := stats.NextPost.MessagePreview
	if !utf8.ValidString(got) {
		t.Fatalf("preview split a rune: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncated preview, got %q", got)
	}
	if want := string([]rune(request.Message)[:50]) + "..."; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
