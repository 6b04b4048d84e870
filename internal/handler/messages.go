package handler

import (
	"time"

	"whatado/event-service/internal/models"
)

type FeedRequest struct {
	ViewerID uint64    `json:"viewer_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Take     int       `json:"take"`
	Skip     int       `json:"skip"`
	Sort     string    `json:"sort,omitempty"`
}

type ViewerRequest struct {
	ViewerID uint64 `json:"viewer_id"`
}

type EventRequest struct {
	EventID uint64 `json:"event_id"`
}

type AttendanceRequest struct {
	EventID uint64 `json:"event_id"`
	UserID  uint64 `json:"user_id"`
}

type WannagoRequest struct {
	WannagoID uint64 `json:"wannago_id"`
}

type UpdateWannagoRequest struct {
	WannagoID uint64 `json:"wannago_id"`
	Declined  bool   `json:"declined"`
}

type UpdateEventRequest struct {
	EventID uint64             `json:"event_id"`
	Update  models.EventUpdate `json:"update"`
}

type EventResponse struct {
	Event *models.Event `json:"event"`
}

type EventsResponse struct {
	Events []*models.Event `json:"events"`
}

// Empty is the response of mutations that return nothing
type Empty struct{}
