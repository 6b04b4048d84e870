package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"whatado/event-service/internal/errs"
	"whatado/event-service/internal/models"
	"whatado/event-service/internal/policy"
	"whatado/event-service/internal/service"
	"whatado/event-service/pkg/auth"
)

type eventHandler struct {
	discovery  service.DiscoveryService
	attendance service.AttendanceService
	events     service.EventService
}

func RegisterEventHandler(
	grpcServer *grpc.Server,
	discovery service.DiscoveryService,
	attendance service.AttendanceService,
	events service.EventService,
) {
	grpcServer.RegisterService(&ServiceDesc, NewEventHandler(discovery, attendance, events))
}

func NewEventHandler(
	discovery service.DiscoveryService,
	attendance service.AttendanceService,
	events service.EventService,
) EventServer {
	return &eventHandler{discovery: discovery, attendance: attendance, events: events}
}

// actor resolves the calling user. The authenticated user wins over an id in
// the request; unauthenticated deployments rely on the request id.
func actor(ctx context.Context, requested uint64, field string) (uint64, error) {
	if u, err := auth.GetUserFromContext(ctx); err == nil {
		return u.UserID, nil
	}
	if requested == 0 {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", field)
	}
	return requested, nil
}

// guardEvent loads the event and applies allowed to the authenticated caller.
// Unauthenticated calls are not checked.
func (h *eventHandler) guardEvent(ctx context.Context, eventID uint64, allowed func(e *models.Event, actorID uint64) bool) error {
	u, err := auth.GetUserFromContext(ctx)
	if err != nil {
		return nil
	}
	e, err := h.events.GetEvent(ctx, eventID)
	if err != nil {
		return toStatus(err)
	}
	if !allowed(e, u.UserID) {
		return toStatus(errs.ErrNotEventMember)
	}
	return nil
}

func eventsResponse(events []*models.Event) *EventsResponse {
	if events == nil {
		events = []*models.Event{}
	}
	return &EventsResponse{Events: events}
}

func (h *eventHandler) feedRequest(ctx context.Context, req *FeedRequest) (service.FeedRequest, error) {
	viewerID, err := actor(ctx, req.ViewerID, "viewer_id")
	if err != nil {
		return service.FeedRequest{}, err
	}
	return service.FeedRequest{
		ViewerID: viewerID,
		Range:    models.TimeRange{Start: req.Start, End: req.End},
		Take:     req.Take,
		Skip:     req.Skip,
		Sort:     models.SortMode(req.Sort),
	}, nil
}

func (h *eventHandler) PrimaryFeed(ctx context.Context, req *FeedRequest) (*EventsResponse, error) {
	in, err := h.feedRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	events, err := h.discovery.PrimaryFeed(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return eventsResponse(events), nil
}

func (h *eventHandler) OtherFeed(ctx context.Context, req *FeedRequest) (*EventsResponse, error) {
	in, err := h.feedRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	events, err := h.discovery.OtherFeed(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return eventsResponse(events), nil
}

func (h *eventHandler) SuggestedFeed(ctx context.Context, req *ViewerRequest) (*EventsResponse, error) {
	viewerID, err := actor(ctx, req.ViewerID, "viewer_id")
	if err != nil {
		return nil, err
	}
	events, err := h.discovery.SuggestedFeed(ctx, viewerID)
	if err != nil {
		return nil, toStatus(err)
	}
	return eventsResponse(events), nil
}

func (h *eventHandler) GetEvent(ctx context.Context, req *EventRequest) (*EventResponse, error) {
	e, err := h.events.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, toStatus(err)
	}
	if u, err := auth.GetUserFromContext(ctx); err == nil && !policy.CanView(e, u.UserID) {
		return nil, toStatus(errs.ErrEventNotFound)
	}
	return &EventResponse{Event: e}, nil
}

func (h *eventHandler) MyEvents(ctx context.Context, req *ViewerRequest) (*EventsResponse, error) {
	viewerID, err := actor(ctx, req.ViewerID, "viewer_id")
	if err != nil {
		return nil, err
	}
	events, err := h.events.MyEvents(ctx, viewerID)
	if err != nil {
		return nil, toStatus(err)
	}
	return eventsResponse(events), nil
}

func (h *eventHandler) FlaggedEvents(ctx context.Context, _ *Empty) (*EventsResponse, error) {
	events, err := h.events.FlaggedEvents(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return eventsResponse(events), nil
}

func (h *eventHandler) CreateEvent(ctx context.Context, req *models.CreateEventInput) (*EventResponse, error) {
	creatorID, err := actor(ctx, req.CreatorID, "creator_id")
	if err != nil {
		return nil, err
	}
	in := *req
	in.CreatorID = creatorID
	e, err := h.events.CreateEvent(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return &EventResponse{Event: e}, nil
}

func (h *eventHandler) UpdateEvent(ctx context.Context, req *UpdateEventRequest) (*EventResponse, error) {
	e, err := h.events.UpdateEvent(ctx, req.EventID, req.Update)
	if err != nil {
		return nil, toStatus(err)
	}
	return &EventResponse{Event: e}, nil
}

func (h *eventHandler) DeleteEvent(ctx context.Context, req *EventRequest) (*Empty, error) {
	if err := h.events.DeleteEvent(ctx, req.EventID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (h *eventHandler) FlagEvent(ctx context.Context, req *EventRequest) (*Empty, error) {
	if err := h.events.FlagEvent(ctx, req.EventID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (h *eventHandler) Invite(ctx context.Context, req *AttendanceRequest) (*EventResponse, error) {
	if err := h.guardEvent(ctx, req.EventID, policy.CanInvite); err != nil {
		return nil, err
	}
	e, err := h.attendance.Invite(ctx, req.EventID, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &EventResponse{Event: e}, nil
}

func (h *eventHandler) Uninvite(ctx context.Context, req *AttendanceRequest) (*EventResponse, error) {
	err := h.guardEvent(ctx, req.EventID, func(e *models.Event, actorID uint64) bool {
		return policy.CanUninvite(e, actorID, req.UserID)
	})
	if err != nil {
		return nil, err
	}
	e, err := h.attendance.Uninvite(ctx, req.EventID, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &EventResponse{Event: e}, nil
}

func (h *eventHandler) AddWannago(ctx context.Context, req *AttendanceRequest) (*EventResponse, error) {
	userID, err := actor(ctx, req.UserID, "user_id")
	if err != nil {
		return nil, err
	}
	e, err := h.attendance.AddWannago(ctx, req.EventID, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &EventResponse{Event: e}, nil
}

func (h *eventHandler) UpdateWannago(ctx context.Context, req *UpdateWannagoRequest) (*Empty, error) {
	if err := h.attendance.UpdateWannago(ctx, req.WannagoID, req.Declined); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (h *eventHandler) DeleteWannago(ctx context.Context, req *WannagoRequest) (*Empty, error) {
	if err := h.attendance.DeleteWannago(ctx, req.WannagoID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}
