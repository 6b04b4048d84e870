package handler

import (
	"context"

	"google.golang.org/grpc"

	"whatado/event-service/internal/models"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "wannago.events.v1.EventService"

// EventServer is the server API for EventService
type EventServer interface {
	PrimaryFeed(context.Context, *FeedRequest) (*EventsResponse, error)
	OtherFeed(context.Context, *FeedRequest) (*EventsResponse, error)
	SuggestedFeed(context.Context, *ViewerRequest) (*EventsResponse, error)
	GetEvent(context.Context, *EventRequest) (*EventResponse, error)
	MyEvents(context.Context, *ViewerRequest) (*EventsResponse, error)
	FlaggedEvents(context.Context, *Empty) (*EventsResponse, error)
	CreateEvent(context.Context, *models.CreateEventInput) (*EventResponse, error)
	UpdateEvent(context.Context, *UpdateEventRequest) (*EventResponse, error)
	DeleteEvent(context.Context, *EventRequest) (*Empty, error)
	FlagEvent(context.Context, *EventRequest) (*Empty, error)
	Invite(context.Context, *AttendanceRequest) (*EventResponse, error)
	Uninvite(context.Context, *AttendanceRequest) (*EventResponse, error)
	AddWannago(context.Context, *AttendanceRequest) (*EventResponse, error)
	UpdateWannago(context.Context, *UpdateWannagoRequest) (*Empty, error)
	DeleteWannago(context.Context, *WannagoRequest) (*Empty, error)
}

// FullMethod returns the wire name of an EventService method
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary adapts a typed EventServer method to a grpc.MethodHandler
func unary[Req, Resp any](method string, call func(EventServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(EventServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EventServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("PrimaryFeed", EventServer.PrimaryFeed),
		unary("OtherFeed", EventServer.OtherFeed),
		unary("SuggestedFeed", EventServer.SuggestedFeed),
		unary("GetEvent", EventServer.GetEvent),
		unary("MyEvents", EventServer.MyEvents),
		unary("FlaggedEvents", EventServer.FlaggedEvents),
		unary("CreateEvent", EventServer.CreateEvent),
		unary("UpdateEvent", EventServer.UpdateEvent),
		unary("DeleteEvent", EventServer.DeleteEvent),
		unary("FlagEvent", EventServer.FlagEvent),
		unary("Invite", EventServer.Invite),
		unary("Uninvite", EventServer.Uninvite),
		unary("AddWannago", EventServer.AddWannago),
		unary("UpdateWannago", EventServer.UpdateWannago),
		unary("DeleteWannago", EventServer.DeleteWannago),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wannago/events/v1/events.json",
}

// EventClient is the client API for EventService. Every call is sent with
// the JSON content subtype.
type EventClient struct {
	cc grpc.ClientConnInterface
}

func NewEventClient(cc grpc.ClientConnInterface) *EventClient {
	return &EventClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *EventClient, method string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *EventClient) PrimaryFeed(ctx context.Context, in *FeedRequest, opts ...grpc.CallOption) (*EventsResponse, error) {
	return invoke[EventsResponse](ctx, c, "PrimaryFeed", in, opts)
}

func (c *EventClient) OtherFeed(ctx context.Context, in *FeedRequest, opts ...grpc.CallOption) (*EventsResponse, error) {
	return invoke[EventsResponse](ctx, c, "OtherFeed", in, opts)
}

func (c *EventClient) SuggestedFeed(ctx context.Context, in *ViewerRequest, opts ...grpc.CallOption) (*EventsResponse, error) {
	return invoke[EventsResponse](ctx, c, "SuggestedFeed", in, opts)
}

func (c *EventClient) GetEvent(ctx context.Context, in *EventRequest, opts ...grpc.CallOption) (*EventResponse, error) {
	return invoke[EventResponse](ctx, c, "GetEvent", in, opts)
}

func (c *EventClient) MyEvents(ctx context.Context, in *ViewerRequest, opts ...grpc.CallOption) (*EventsResponse, error) {
	return invoke[EventsResponse](ctx, c, "MyEvents", in, opts)
}

func (c *EventClient) FlaggedEvents(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*EventsResponse, error) {
	return invoke[EventsResponse](ctx, c, "FlaggedEvents", in, opts)
}

func (c *EventClient) CreateEvent(ctx context.Context, in *models.CreateEventInput, opts ...grpc.CallOption) (*EventResponse, error) {
	return invoke[EventResponse](ctx, c, "CreateEvent", in, opts)
}

func (c *EventClient) UpdateEvent(ctx context.Context, in *UpdateEventRequest, opts ...grpc.CallOption) (*EventResponse, error) {
	return invoke[EventResponse](ctx, c, "UpdateEvent", in, opts)
}

func (c *EventClient) DeleteEvent(ctx context.Context, in *EventRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "DeleteEvent", in, opts)
}

func (c *EventClient) FlagEvent(ctx context.Context, in *EventRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "FlagEvent", in, opts)
}

func (c *EventClient) Invite(ctx context.Context, in *AttendanceRequest, opts ...grpc.CallOption) (*EventResponse, error) {
	return invoke[EventResponse](ctx, c, "Invite", in, opts)
}

func (c *EventClient) Uninvite(ctx context.Context, in *AttendanceRequest, opts ...grpc.CallOption) (*EventResponse, error) {
	return invoke[EventResponse](ctx, c, "Uninvite", in, opts)
}

func (c *EventClient) AddWannago(ctx context.Context, in *AttendanceRequest, opts ...grpc.CallOption) (*EventResponse, error) {
	return invoke[EventResponse](ctx, c, "AddWannago", in, opts)
}

func (c *EventClient) UpdateWannago(ctx context.Context, in *UpdateWannagoRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "UpdateWannago", in, opts)
}

func (c *EventClient) DeleteWannago(ctx context.Context, in *WannagoRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "DeleteWannago", in, opts)
}
