package rest

import (
	"time"

	domainPost "github.com/postpilot/postpilot/domains/post"
	pkgError "github.com/postpilot/postpilot/pkg/error"
	"github.com/postpilot/postpilot/pkg/utils"
)

type CreatePostRequest struct {
	Kind          string  `json:"kind"`
	Message       string  `json:"message"`
	Link          string  `json:"link,omitempty"`
	AltText       string  `json:"alt_text,omitempty"`
	ImageRef      string  `json:"image_ref,omitempty"`
	ScheduleTime  string  `json:"schedule_time"`
	Timezone      string  `json:"timezone,omitempty"`
	Recurrence    string  `json:"recurrence,omitempty"`
	RecurrenceEnd *string `json:"recurrence_end,omitempty"`
}

type UpdatePostRequest struct {
	Message      *string `json:"message,omitempty"`
	ScheduleTime *string `json:"schedule_time,omitempty"`
	Recurrence   *string `json:"recurrence,omitempty"`
}

// PostResponse flattens the content union into one JSON shape keyed by kind.
type PostResponse struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	Message         string     `json:"message"`
	Link            string     `json:"link,omitempty"`
	AltText         string     `json:"alt_text,omitempty"`
	ImageRef        string     `json:"image_ref,omitempty"`
	ScheduleTime    time.Time  `json:"schedule_time"`
	Timezone        string     `json:"timezone"`
	Recurrence      string     `json:"recurrence"`
	RecurrenceEnd   *time.Time `json:"recurrence_end,omitempty"`
	Status          string     `json:"status"`
	AttemptCount    int        `json:"attempt_count"`
	LastError       string     `json:"last_error,omitempty"`
	ExternalPostID  string     `json:"external_post_id,omitempty"`
	CancelRequested bool       `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toPostResponse(p domainPost.ScheduledPost) PostResponse {
	response := PostResponse{
		ID:              p.ID,
		ScheduleTime:    p.ScheduleTime,
		Timezone:        p.Timezone,
		Recurrence:      string(p.Recurrence),
		RecurrenceEnd:   p.RecurrenceEnd,
		Status:          string(p.Status),
		AttemptCount:    p.AttemptCount,
		LastError:       p.LastError,
		ExternalPostID:  p.ExternalPostID,
		CancelRequested: p.CancelRequested,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}

	switch c := p.Content.(type) {
	case domainPost.TextContent:
		response.Kind = string(domainPost.ContentKindText)
		response.Message = c.Message
		response.Link = c.Link
	case domainPost.ImageContent:
		response.Kind = string(domainPost.ContentKindImage)
		response.Message = c.Message
		response.AltText = c.AltText
		response.ImageRef = c.ImageRef
	}
	return response
}

func toPostResponses(posts []domainPost.ScheduledPost) []PostResponse {
	responses := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		responses = append(responses, toPostResponse(p))
	}
	return responses
}

func parseTimeField(field, value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError(field + " must be RFC3339"))
	}
	return t
}
