package service

import (
	"context"
	"fmt"

	"whatado/event-service/internal/errs"
	"whatado/event-service/internal/models"
	"whatado/event-service/internal/repository"
	"whatado/event-service/internal/validation"
)

type EventService interface {
	GetEvent(ctx context.Context, id uint64) (*models.Event, error)
	MyEvents(ctx context.Context, viewerID uint64) ([]*models.Event, error)
	CreateEvent(ctx context.Context, in models.CreateEventInput) (*models.Event, error)
	UpdateEvent(ctx context.Context, id uint64, u models.EventUpdate) (*models.Event, error)
	DeleteEvent(ctx context.Context, id uint64) error
	FlagEvent(ctx context.Context, id uint64) error
	FlaggedEvents(ctx context.Context) ([]*models.Event, error)
}

type eventService struct {
	events    repository.EventRepository
	users     repository.UserRepository
	validator *validation.Validator
	notifier  *Notifier
	opts      Options
}

func NewEventService(
	events repository.EventRepository,
	users repository.UserRepository,
	validator *validation.Validator,
	notifier *Notifier,
	opts Options,
) EventService {
	return &eventService{events: events, users: users, validator: validator, notifier: notifier, opts: opts}
}

func (s *eventService) GetEvent(ctx context.Context, id uint64) (*models.Event, error) {
	return s.events.GetByID(ctx, id)
}

func (s *eventService) MyEvents(ctx context.Context, viewerID uint64) ([]*models.Event, error) {
	return s.events.ListForMember(ctx, viewerID)
}

func (s *eventService) CreateEvent(ctx context.Context, in models.CreateEventInput) (*models.Event, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	if in.Privacy == models.PrivacyGroup && in.GroupID == nil {
		return nil, errs.ErrGroupRequired
	}
	ok, err := s.users.Exists(ctx, in.CreatorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrUserNotFound
	}

	now := s.opts.now()
	e := &models.Event{
		CreatorID:    in.CreatorID,
		GroupID:      in.GroupID,
		Title:        in.Title,
		Description:  in.Description,
		Location:     in.Location,
		PictureURL:   in.PictureURL,
		Time:         in.Time.UTC(),
		Coordinates:  models.Point{Lat: in.Lat, Lng: in.Lng},
		Privacy:      in.Privacy,
		FilterMinAge: in.FilterMinAge,
		FilterMaxAge: in.FilterMaxAge,
		FilterGender: in.FilterGender,
		FilterRadius: in.FilterRadius,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := s.events.Create(ctx, e, in.RelatedInterestIDs, in.InvitedIDs)
	if err != nil {
		return nil, err
	}

	created, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if created.Privacy == models.PrivacyPrivate {
		ids := make([]uint64, 0, len(created.Invited))
		for _, u := range created.Invited {
			ids = append(ids, u.ID)
		}
		s.notifier.Invited(ctx, created, ids...)
	}
	return created, nil
}

func notNullable(field string) error {
	return fmt.Errorf("%s: %w", field, errs.ErrNotNullable)
}

// setRequired applies a tri-state value to a non-nullable field
func setRequired[T any](field string, o models.Optional[T], dst *T) error {
	if !o.Present() {
		return nil
	}
	v, ok := o.Get()
	if !ok {
		return notNullable(field)
	}
	*dst = v
	return nil
}

// setNullable applies a tri-state value to a nullable field
func setNullable[T any](o models.Optional[T], dst **T) {
	if !o.Present() {
		return
	}
	if v, ok := o.Get(); ok {
		*dst = &v
		return
	}
	*dst = nil
}

func merge(e *models.Event, u models.EventUpdate) error {
	steps := []error{
		setRequired("title", u.Title, &e.Title),
		setRequired("description", u.Description, &e.Description),
		setRequired("location", u.Location, &e.Location),
		setRequired("time", u.Time, &e.Time),
		setRequired("coordinates", u.Coordinates, &e.Coordinates),
		setRequired("privacy", u.Privacy, &e.Privacy),
		setRequired("filter_min_age", u.FilterMinAge, &e.FilterMinAge),
		setRequired("filter_max_age", u.FilterMaxAge, &e.FilterMaxAge),
		setRequired("filter_gender", u.FilterGender, &e.FilterGender),
		setRequired("filter_radius", u.FilterRadius, &e.FilterRadius),
	}
	for _, err := range steps {
		if err != nil {
			return err
		}
	}
	setNullable(u.PictureURL, &e.PictureURL)
	setNullable(u.GroupID, &e.GroupID)
	return nil
}

func (s *eventService) UpdateEvent(ctx context.Context, id uint64, u models.EventUpdate) (*models.Event, error) {
	if u.Empty() {
		return nil, errs.ErrEmptyUpdate
	}
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := merge(e, u); err != nil {
		return nil, err
	}

	// the merged event must satisfy the same rules as a new one
	check := models.CreateEventInput{
		CreatorID:    e.CreatorID,
		GroupID:      e.GroupID,
		Title:        e.Title,
		Description:  e.Description,
		Location:     e.Location,
		PictureURL:   e.PictureURL,
		Time:         e.Time,
		Lat:          e.Coordinates.Lat,
		Lng:          e.Coordinates.Lng,
		Privacy:      e.Privacy,
		FilterMinAge: e.FilterMinAge,
		FilterMaxAge: e.FilterMaxAge,
		FilterGender: e.FilterGender,
		FilterRadius: e.FilterRadius,
	}
	if err := s.validator.Validate(check); err != nil {
		return nil, err
	}
	if e.Privacy == models.PrivacyGroup && e.GroupID == nil {
		return nil, errs.ErrGroupRequired
	}

	var interestIDs []uint64
	if u.RelatedInterestIDs.Present() {
		interestIDs, _ = u.RelatedInterestIDs.Get()
		if interestIDs == nil {
			interestIDs = []uint64{}
		}
	}
	e.Time = e.Time.UTC()
	e.UpdatedAt = s.opts.now()
	if err := s.events.Update(ctx, e, interestIDs); err != nil {
		return nil, err
	}
	return s.events.GetByID(ctx, id)
}

func (s *eventService) DeleteEvent(ctx context.Context, id uint64) error {
	return s.events.Delete(ctx, id)
}

func (s *eventService) FlagEvent(ctx context.Context, id uint64) error {
	return s.events.IncrementFlags(ctx, id)
}

func (s *eventService) FlaggedEvents(ctx context.Context) ([]*models.Event, error) {
	return s.events.ListFlagged(ctx)
}
