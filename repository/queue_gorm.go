package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domainPost "github.com/postpilot/postpilot/domains/post"
	pkgError "github.com/postpilot/postpilot/pkg/error"
	"gorm.io/gorm"
)

// --- Persistence Model ---

type scheduledPostModel struct {
	ID              string         `gorm:"primaryKey;column:id"`
	ContentKind     string         `gorm:"column:content_kind;not null"`
	Message         string         `gorm:"column:message;not null"`
	Link            sql.NullString `gorm:"column:link"`
	AltText         sql.NullString `gorm:"column:alt_text"`
	ImageRef        sql.NullString `gorm:"column:image_ref"`
	ScheduleTime    time.Time      `gorm:"column:schedule_time;not null;index"`
	OccurrenceTime  time.Time      `gorm:"column:occurrence_time"`
	Timezone        string         `gorm:"column:timezone;default:'UTC'"`
	Recurrence      string         `gorm:"column:recurrence;default:'none'"`
	RecurrenceEnd   *time.Time     `gorm:"column:recurrence_end"`
	Status          string         `gorm:"column:status;default:'scheduled';index"`
	AttemptCount    int            `gorm:"column:attempt_count;default:0"`
	LastError       sql.NullString `gorm:"column:last_error"`
	ExternalPostID  sql.NullString `gorm:"column:external_post_id"`
	CancelRequested bool           `gorm:"column:cancel_requested;default:false"`
	CreatedAt       time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;not null"`
}

func (scheduledPostModel) TableName() string { return "scheduled_posts" }

func toModel(p domainPost.ScheduledPost) scheduledPostModel {
	m := scheduledPostModel{
		ID:              p.ID,
		ScheduleTime:    p.ScheduleTime.UTC(),
		OccurrenceTime:  p.OccurrenceTime.UTC(),
		Timezone:        p.Timezone,
		Recurrence:      string(p.Recurrence),
		RecurrenceEnd:   p.RecurrenceEnd,
		Status:          string(p.Status),
		AttemptCount:    p.AttemptCount,
		LastError:       toNullString(p.LastError),
		ExternalPostID:  toNullString(p.ExternalPostID),
		CancelRequested: p.CancelRequested,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	switch c := p.Content.(type) {
	case domainPost.TextContent:
		m.ContentKind = string(domainPost.ContentKindText)
		m.Message = c.Message
		m.Link = toNullString(c.Link)
	case domainPost.ImageContent:
		m.ContentKind = string(domainPost.ContentKindImage)
		m.Message = c.Message
		m.AltText = toNullString(c.AltText)
		m.ImageRef = toNullString(c.ImageRef)
	}
	return m
}

func fromModel(m scheduledPostModel) domainPost.ScheduledPost {
	p := domainPost.ScheduledPost{
		ID:              m.ID,
		ScheduleTime:    m.ScheduleTime.UTC(),
		OccurrenceTime:  m.OccurrenceTime.UTC(),
		Timezone:        m.Timezone,
		Recurrence:      domainPost.RecurrenceType(m.Recurrence),
		RecurrenceEnd:   m.RecurrenceEnd,
		Status:          domainPost.PostStatus(m.Status),
		AttemptCount:    m.AttemptCount,
		LastError:       m.LastError.String,
		ExternalPostID:  m.ExternalPostID.String,
		CancelRequested: m.CancelRequested,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	switch domainPost.ContentKind(m.ContentKind) {
	case domainPost.ContentKindImage:
		p.Content = domainPost.ImageContent{
			Message:  m.Message,
			AltText:  m.AltText.String,
			ImageRef: m.ImageRef.String,
		}
	default:
		p.Content = domainPost.TextContent{
			Message: m.Message,
			Link:    m.Link.String,
		}
	}
	return p
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// --- Repository Implementation ---

type QueueGormRepository struct {
	db *gorm.DB
}

func NewQueueGormRepository(db *gorm.DB) *QueueGormRepository {
	return &QueueGormRepository{db: db}
}

func (r *QueueGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&scheduledPostModel{})
}

func (r *QueueGormRepository) Create(ctx context.Context, p domainPost.ScheduledPost) error {
	model := toModel(p)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *QueueGormRepository) GetByID(ctx context.Context, id string) (domainPost.ScheduledPost, error) {
	var m scheduledPostModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domainPost.ScheduledPost{}, pkgError.NotFoundError(fmt.Sprintf("post %s not found", id))
		}
		return domainPost.ScheduledPost{}, err
	}
	return fromModel(m), nil
}

func (r *QueueGormRepository) Update(ctx context.Context, p domainPost.ScheduledPost) error {
	model := toModel(p)
	res := r.db.WithContext(ctx).Select("*").Where("id = ?", p.ID).Updates(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgError.NotFoundError(fmt.Sprintf("post %s not found", p.ID))
	}
	return nil
}

func (r *QueueGormRepository) List(ctx context.Context, status domainPost.PostStatus, limit, offset int) ([]domainPost.ScheduledPost, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	q := r.db.WithContext(ctx).Model(&scheduledPostModel{})
	switch status {
	case "":
		q = q.Order("updated_at DESC")
	case domainPost.StatusScheduled:
		q = q.Where("status = ?", status).Order("schedule_time DESC")
	default:
		q = q.Where("status = ?", status).Order("updated_at DESC")
	}

	var models []scheduledPostModel
	if err := q.Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

func (r *QueueGormRepository) FetchDue(ctx context.Context, asOf time.Time) ([]domainPost.ScheduledPost, error) {
	var models []scheduledPostModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND schedule_time <= ?", domainPost.StatusScheduled, asOf.UTC()).
		Order("schedule_time ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

// ClaimForPublish is the mutual-exclusion point of the whole engine: a
// single conditional UPDATE so that concurrent scanners racing on the same
// post get exactly one winner.
func (r *QueueGormRepository) ClaimForPublish(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&scheduledPostModel{}).
		Where("id = ? AND status = ?", id, domainPost.StatusScheduled).
		Updates(map[string]any{
			"status":     string(domainPost.StatusPublishing),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var m scheduledPostModel
		if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgError.NotFoundError(fmt.Sprintf("post %s not found", id))
			}
			return err
		}
		return pkgError.InvalidTransitionError(
			fmt.Sprintf("post %s is %s, cannot claim for publishing", id, m.Status))
	}
	return nil
}

func (r *QueueGormRepository) Transition(ctx context.Context, id string, to domainPost.PostStatus) (domainPost.ScheduledPost, error) {
	var updated domainPost.ScheduledPost
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m scheduledPostModel
		if err := tx.First(&m, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgError.NotFoundError(fmt.Sprintf("post %s not found", id))
			}
			return err
		}
		from := domainPost.PostStatus(m.Status)
		if !domainPost.CanTransition(from, to) {
			return pkgError.InvalidTransitionError(
				fmt.Sprintf("illegal transition %s -> %s for post %s", from, to, id))
		}
		m.Status = string(to)
		m.UpdatedAt = time.Now().UTC()
		if err := tx.Select("*").Where("id = ?", m.ID).Updates(&m).Error; err != nil {
			return err
		}
		updated = fromModel(m)
		return nil
	})
	return updated, err
}

func (r *QueueGormRepository) RequestCancel(ctx context.Context, id string) (domainPost.ScheduledPost, bool, error) {
	var (
		updated  domainPost.ScheduledPost
		inFlight bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m scheduledPostModel
		if err := tx.First(&m, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgError.NotFoundError(fmt.Sprintf("post %s not found", id))
			}
			return err
		}
		switch domainPost.PostStatus(m.Status) {
		case domainPost.StatusScheduled, domainPost.StatusPaused, domainPost.StatusFailed:
			m.Status = string(domainPost.StatusCancelled)
		case domainPost.StatusPublishing:
			// The publish call is already in flight; mark the post and let
			// the engine resolve it once the call returns.
			m.CancelRequested = true
			inFlight = true
		default:
			return pkgError.InvalidTransitionError(
				fmt.Sprintf("post %s is %s and cannot be cancelled", id, m.Status))
		}
		m.UpdatedAt = time.Now().UTC()
		if err := tx.Select("*").Where("id = ?", m.ID).Updates(&m).Error; err != nil {
			return err
		}
		updated = fromModel(m)
		return nil
	})
	return updated, inFlight, err
}

func (r *QueueGormRepository) RecoverStale(ctx context.Context) ([]domainPost.ScheduledPost, error) {
	var recovered []domainPost.ScheduledPost
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var models []scheduledPostModel
		if err := tx.Where("status = ?", domainPost.StatusPublishing).Find(&models).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, m := range models {
			m.Status = string(domainPost.StatusScheduled)
			m.UpdatedAt = now
			if err := tx.Select("*").Where("id = ?", m.ID).Updates(&m).Error; err != nil {
				return err
			}
			recovered = append(recovered, fromModel(m))
		}
		return nil
	})
	return recovered, err
}

func (r *QueueGormRepository) CountByStatus(ctx context.Context) (map[domainPost.PostStatus]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&scheduledPostModel{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[domainPost.PostStatus]int64, len(rows))
	for _, rw := range rows {
		counts[domainPost.PostStatus(rw.Status)] = rw.Total
	}
	return counts, nil
}

func (r *QueueGormRepository) UpcomingWithin(ctx context.Context, from, to time.Time) ([]domainPost.ScheduledPost, error) {
	var models []scheduledPostModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND schedule_time >= ? AND schedule_time <= ?",
			domainPost.StatusScheduled, from.UTC(), to.UTC()).
		Order("schedule_time ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

func fromModels(models []scheduledPostModel) []domainPost.ScheduledPost {
	res := make([]domainPost.ScheduledPost, len(models))
	for i, m := range models {
		res[i] = fromModel(m)
	}
	return res
}
