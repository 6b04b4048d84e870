package service

import (
	"context"

	"whatado/event-service/internal/models"
	"whatado/event-service/internal/repository"
	"whatado/event-service/pkg/metrics"
)

// Attendance transitions as recorded in metrics
const (
	transitionInvited     = "invited"
	transitionDeclined    = "declined"
	transitionWantsToGo   = "wants_to_go"
	transitionReactivated = "reactivated"
	transitionDeleted     = "deleted"
)

type AttendanceService interface {
	Invite(ctx context.Context, eventID, userID uint64) (*models.Event, error)
	Uninvite(ctx context.Context, eventID, userID uint64) (*models.Event, error)
	AddWannago(ctx context.Context, eventID, userID uint64) (*models.Event, error)
	UpdateWannago(ctx context.Context, wannagoID uint64, declined bool) error
	DeleteWannago(ctx context.Context, wannagoID uint64) error
}

type attendanceService struct {
	attendance repository.AttendanceRepository
	events     repository.EventRepository
	notifier   *Notifier
	metrics    *metrics.Metrics
}

func NewAttendanceService(
	attendance repository.AttendanceRepository,
	events repository.EventRepository,
	notifier *Notifier,
	m *metrics.Metrics,
) AttendanceService {
	return &attendanceService{attendance: attendance, events: events, notifier: notifier, metrics: m}
}

func (s *attendanceService) transition(name string) {
	s.metrics.AttendanceTransitions.WithLabelValues(name).Inc()
}

func (s *attendanceService) Invite(ctx context.Context, eventID, userID uint64) (*models.Event, error) {
	if err := s.attendance.Invite(ctx, eventID, userID); err != nil {
		return nil, err
	}
	s.transition(transitionInvited)

	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	s.notifier.Invited(ctx, e, userID)
	return e, nil
}

// Uninvite removes the invitation and leaves the pair's Wannago declined
func (s *attendanceService) Uninvite(ctx context.Context, eventID, userID uint64) (*models.Event, error) {
	if err := s.attendance.Uninvite(ctx, eventID, userID); err != nil {
		return nil, err
	}
	s.transition(transitionDeclined)
	return s.events.GetByID(ctx, eventID)
}

func (s *attendanceService) AddWannago(ctx context.Context, eventID, userID uint64) (*models.Event, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	outcome, err := s.attendance.AddWannago(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if outcome == models.WannagoReactivated {
		s.transition(transitionReactivated)
	} else {
		s.transition(transitionWantsToGo)
	}

	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	s.notifier.WannagoAdded(ctx, e)
	return e, nil
}

func (s *attendanceService) UpdateWannago(ctx context.Context, wannagoID uint64, declined bool) error {
	if err := s.attendance.UpdateWannago(ctx, wannagoID, declined); err != nil {
		return err
	}
	if declined {
		s.transition(transitionDeclined)
	} else {
		s.transition(transitionReactivated)
	}
	return nil
}

func (s *attendanceService) DeleteWannago(ctx context.Context, wannagoID uint64) error {
	if err := s.attendance.DeleteWannago(ctx, wannagoID); err != nil {
		return err
	}
	s.transition(transitionDeleted)
	return nil
}
