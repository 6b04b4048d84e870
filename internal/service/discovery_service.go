package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"whatado/event-service/internal/errs"
	"whatado/event-service/internal/models"
	"whatado/event-service/internal/policy"
	"whatado/event-service/internal/repository"
	"whatado/event-service/pkg/logger"
	"whatado/event-service/pkg/metrics"
)

// FeedRequest selects one page of the primary or other feed
type FeedRequest struct {
	ViewerID uint64
	Range    models.TimeRange
	Take     int
	Skip     int
	Sort     models.SortMode
}

type DiscoveryService interface {
	PrimaryFeed(ctx context.Context, req FeedRequest) ([]*models.Event, error)
	OtherFeed(ctx context.Context, req FeedRequest) ([]*models.Event, error)
	SuggestedFeed(ctx context.Context, viewerID uint64) ([]*models.Event, error)
}

type discoveryService struct {
	users   repository.UserRepository
	events  repository.EventRepository
	opts    Options
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewDiscoveryService(
	users repository.UserRepository,
	events repository.EventRepository,
	opts Options,
	log *logger.Logger,
	m *metrics.Metrics,
) DiscoveryService {
	return &discoveryService{users: users, events: events, opts: opts, log: log, metrics: m}
}

func (s *discoveryService) PrimaryFeed(ctx context.Context, req FeedRequest) ([]*models.Event, error) {
	return s.feed(ctx, "primary", req, policy.InterestsMatch)
}

func (s *discoveryService) OtherFeed(ctx context.Context, req FeedRequest) ([]*models.Event, error) {
	return s.feed(ctx, "other", req, policy.InterestsComplement)
}

func (s *discoveryService) validate(req *FeedRequest) error {
	if req.Take < 1 || req.Take > s.opts.MaxPageSize || req.Skip < 0 {
		return fmt.Errorf("take must be in [1, %d] and skip non-negative: %w", s.opts.MaxPageSize, errs.ErrInvalidPagination)
	}
	if req.Range.Start.After(req.Range.End) {
		return errs.ErrInvalidTimeRange
	}
	if req.Sort == "" {
		req.Sort = models.SortSoonest
	}
	if !req.Sort.Valid() {
		return errs.ErrInvalidSortMode
	}
	return nil
}

// viewer loads the snapshot once for the request and fails closed when the
// profile cannot drive the demographic and geospatial filters
func (s *discoveryService) viewer(ctx context.Context, id uint64) (*models.ViewerSnapshot, error) {
	v, err := s.users.GetViewerSnapshot(ctx, id)
	if err != nil {
		return nil, s.storeErr(ctx, err)
	}
	if !v.Complete() {
		return nil, errs.ErrIncompleteViewer
	}
	return v, nil
}

func (s *discoveryService) feed(ctx context.Context, name string, req FeedRequest, mode policy.InterestMode) ([]*models.Event, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	viewer, err := s.viewer(ctx, req.ViewerID)
	if err != nil {
		return nil, err
	}
	now := s.opts.now()
	events, err := s.events.ListFeed(ctx, repository.FeedQuery{
		Viewer:    viewer,
		Range:     req.Range,
		Take:      req.Take,
		Skip:      req.Skip,
		Sort:      req.Sort,
		Interests: mode,
		Radius:    s.opts.Radius,
		Now:       now,
	})
	if err != nil {
		return nil, s.storeErr(ctx, err)
	}

	return s.reverify(ctx, name, viewer, events, mode, now, func(e *models.Event) bool {
		return !e.Time.Before(req.Range.Start) && !e.Time.After(req.Range.End)
	}), nil
}

func (s *discoveryService) SuggestedFeed(ctx context.Context, viewerID uint64) ([]*models.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	viewer, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	now := s.opts.now()
	events, err := s.events.ListSuggested(ctx, repository.SuggestedQuery{
		Viewer: viewer,
		Radius: s.opts.Radius,
		Now:    now,
		Limit:  s.opts.SuggestedLimit,
	})
	if err != nil {
		return nil, s.storeErr(ctx, err)
	}
	if len(events) > s.opts.SuggestedLimit {
		events = events[:s.opts.SuggestedLimit]
	}

	return s.reverify(ctx, "suggested", viewer, events, policy.InterestsMatch, now, func(e *models.Event) bool {
		return e.Time.After(now)
	}), nil
}

// reverify drops rows the store returned but the viewer may not see. A drop
// means the pushed-down predicates and the evaluator disagree.
func (s *discoveryService) reverify(
	ctx context.Context,
	feed string,
	viewer *models.ViewerSnapshot,
	events []*models.Event,
	mode policy.InterestMode,
	now time.Time,
	inWindow func(*models.Event) bool,
) []*models.Event {
	eval := &policy.Evaluator{Radius: s.opts.Radius, Now: func() time.Time { return now }}
	out := make([]*models.Event, 0, len(events))
	for _, e := range events {
		d := eval.Evaluate(viewer, e, mode)
		if d.Admitted && !inWindow(e) {
			d = policy.Decision{Reason: policy.ReasonTimeWindow}
		}
		if !d.Admitted {
			s.metrics.PolicyDenials.WithLabelValues(string(d.Reason)).Inc()
			s.log.FromContext(ctx).WithFields(logrus.Fields{
				"feed":      feed,
				"viewer_id": viewer.UserID,
				"event_id":  e.ID,
				"reason":    d.Reason,
			}).Warn(errs.ErrPolicyReverify.Error())
			continue
		}
		out = append(out, e)
	}
	s.metrics.FeedResults.WithLabelValues(feed).Observe(float64(len(out)))
	return out
}

// storeErr maps an expired request deadline to a retryable timeout
func (s *discoveryService) storeErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", errs.ErrQueryTimeout, err)
	}
	return err
}
