package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"whatado/event-service/internal/errs"
	"whatado/event-service/internal/models"
	"whatado/event-service/internal/pubsub"
	"whatado/event-service/internal/repository"
	"whatado/event-service/internal/service"
	"whatado/event-service/internal/validation"
	"whatado/event-service/pkg/auth"
	"whatado/event-service/pkg/logger"
	"whatado/event-service/pkg/metrics"
)

var testNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

const testSecret = "test-secret"

type testServer struct {
	client *EventClient
	store  *repository.MemoryStore
}

func startServer(t *testing.T, interceptors ...grpc.UnaryServerInterceptor) *testServer {
	t.Helper()

	store := repository.NewMemoryStore()
	store.SetClock(func() time.Time { return testNow })
	birth := time.Date(1995, time.May, 20, 0, 0, 0, 0, time.UTC)
	store.AddUser(repository.MemoryUser{
		ID: 1, Username: "viewer", BirthDate: &birth, Gender: models.GenderMale,
		Location: &models.Point{Lat: 10, Lng: 10},
	})
	store.AddUser(repository.MemoryUser{ID: 2, Username: "creator"})
	store.AddUser(repository.MemoryUser{ID: 3, Username: "guest"})

	log := logger.NewLogger("event-service-test", "error")
	log.SetOutput(io.Discard)
	m := metrics.NewMetrics("handler_test", prometheus.NewRegistry())
	opts := service.DefaultOptions()
	opts.Now = func() time.Time { return testNow }
	notifier := service.NewNotifier(pubsub.NewLogPublisher(log.Logger), log)

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	RegisterEventHandler(s,
		service.NewDiscoveryService(store, store, opts, log, m),
		service.NewAttendanceService(store, store, notifier, m),
		service.NewEventService(store, store, validation.New(), notifier, opts),
	)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		s.Stop()
	})
	return &testServer{client: NewEventClient(conn), store: store}
}

func (ts *testServer) addEvent(t *testing.T, mutate func(e *models.Event)) uint64 {
	t.Helper()
	e := &models.Event{
		CreatorID:    2,
		Title:        "Picnic",
		Time:         testNow.Add(2 * time.Hour),
		Coordinates:  models.Point{Lat: 10, Lng: 11},
		Privacy:      models.PrivacyPublic,
		FilterMaxAge: 150,
		FilterGender: models.GenderBoth,
	}
	if mutate != nil {
		mutate(e)
	}
	id, err := ts.store.Create(context.Background(), e, nil, nil)
	require.NoError(t, err)
	return id
}

func codeOf(err error) codes.Code {
	return status.Code(err)
}

func TestEventHandler_PrimaryFeed(t *testing.T) {
	ts := startServer(t)
	id := ts.addEvent(t, nil)
	ts.addEvent(t, func(e *models.Event) { e.Privacy = models.PrivacyPrivate })

	resp, err := ts.client.PrimaryFeed(context.Background(), &FeedRequest{
		ViewerID: 1, Start: testNow, End: testNow.Add(24 * time.Hour), Take: 10,
	})
	require.NoError(t, err)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, id, resp.Events[0].ID)
	assert.Equal(t, "creator", resp.Events[0].Creator.Username)
	assert.True(t, resp.Events[0].Time.Equal(testNow.Add(2*time.Hour)))
}

func TestEventHandler_EmptyFeedIsEmptyList(t *testing.T) {
	ts := startServer(t)
	resp, err := ts.client.OtherFeed(context.Background(), &FeedRequest{
		ViewerID: 1, Start: testNow, End: testNow.Add(time.Hour), Take: 5,
	})
	require.NoError(t, err)
	assert.NotNil(t, resp.Events)
	assert.Empty(t, resp.Events)
}

func TestEventHandler_ErrorCodes(t *testing.T) {
	ts := startServer(t)
	ctx := context.Background()
	id := ts.addEvent(t, nil)
	_, err := ts.client.AddWannago(ctx, &AttendanceRequest{EventID: id, UserID: 3})
	require.NoError(t, err)

	tests := []struct {
		name     string
		call     func() error
		expected codes.Code
	}{
		{"unknown event", func() error {
			_, err := ts.client.GetEvent(ctx, &EventRequest{EventID: 404})
			return err
		}, codes.NotFound},
		{"duplicate wannago", func() error {
			_, err := ts.client.AddWannago(ctx, &AttendanceRequest{EventID: id, UserID: 3})
			return err
		}, codes.AlreadyExists},
		{"incomplete viewer", func() error {
			_, err := ts.client.SuggestedFeed(ctx, &ViewerRequest{ViewerID: 3})
			return err
		}, codes.FailedPrecondition},
		{"bad pagination", func() error {
			_, err := ts.client.PrimaryFeed(ctx, &FeedRequest{ViewerID: 1, Start: testNow, End: testNow, Take: 0})
			return err
		}, codes.InvalidArgument},
		{"missing viewer", func() error {
			_, err := ts.client.MyEvents(ctx, &ViewerRequest{})
			return err
		}, codes.InvalidArgument},
		{"group without group", func() error {
			_, err := ts.client.CreateEvent(ctx, &models.CreateEventInput{
				CreatorID: 2, Title: "x", Time: testNow, Privacy: models.PrivacyGroup,
				FilterMaxAge: 10, FilterGender: models.GenderBoth,
			})
			return err
		}, codes.FailedPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, codeOf(tt.call()))
		})
	}
}

func TestEventHandler_UpdateEventOverTheWire(t *testing.T) {
	ts := startServer(t)
	ctx := context.Background()
	pic := "https://example.com/p.png"
	id := ts.addEvent(t, func(e *models.Event) { e.PictureURL = &pic; e.Description = "keep me" })

	resp, err := ts.client.UpdateEvent(ctx, &UpdateEventRequest{
		EventID: id,
		Update:  models.EventUpdate{Title: models.Some("Renamed"), PictureURL: models.Null[string]()},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", resp.Event.Title)
	assert.Equal(t, "keep me", resp.Event.Description)
	assert.Nil(t, resp.Event.PictureURL)

	_, err = ts.client.UpdateEvent(ctx, &UpdateEventRequest{
		EventID: id,
		Update:  models.EventUpdate{Location: models.Null[string]()},
	})
	assert.Equal(t, codes.InvalidArgument, codeOf(err))
}

func TestEventHandler_AttendanceFlow(t *testing.T) {
	ts := startServer(t)
	ctx := context.Background()
	id := ts.addEvent(t, nil)

	resp, err := ts.client.Invite(ctx, &AttendanceRequest{EventID: id, UserID: 3})
	require.NoError(t, err)
	assert.Equal(t, models.StateInvited, models.StateOf(resp.Event, 3))

	resp, err = ts.client.Uninvite(ctx, &AttendanceRequest{EventID: id, UserID: 3})
	require.NoError(t, err)
	assert.Equal(t, models.StateDeclined, models.StateOf(resp.Event, 3))
	wid := resp.Event.Wannagos[0].ID

	_, err = ts.client.UpdateWannago(ctx, &UpdateWannagoRequest{WannagoID: wid, Declined: false})
	require.NoError(t, err)
	got, err := ts.client.GetEvent(ctx, &EventRequest{EventID: id})
	require.NoError(t, err)
	assert.Equal(t, models.StateWantsToGo, models.StateOf(got.Event, 3))

	_, err = ts.client.DeleteWannago(ctx, &WannagoRequest{WannagoID: wid})
	require.NoError(t, err)
	_, err = ts.client.DeleteWannago(ctx, &WannagoRequest{WannagoID: wid})
	assert.Equal(t, codes.NotFound, codeOf(err))

	_, err = ts.client.FlagEvent(ctx, &EventRequest{EventID: id})
	require.NoError(t, err)
	flagged, err := ts.client.FlaggedEvents(ctx, &Empty{})
	require.NoError(t, err)
	require.Len(t, flagged.Events, 1)

	_, err = ts.client.DeleteEvent(ctx, &EventRequest{EventID: id})
	require.NoError(t, err)
	_, err = ts.client.GetEvent(ctx, &EventRequest{EventID: id})
	assert.Equal(t, codes.NotFound, codeOf(err))
}

func TestEventHandler_AuthenticatedUserWins(t *testing.T) {
	validator := auth.NewJWTValidator(testSecret)
	ts := startServer(t, auth.UnaryServerInterceptor(validator))
	id := ts.addEvent(t, nil)

	_, err := ts.client.GetEvent(context.Background(), &EventRequest{EventID: id})
	assert.Equal(t, codes.Unauthenticated, codeOf(err))

	token, err := validator.Sign(3, time.Hour)
	require.NoError(t, err)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)

	// the request names user 1, the token names user 3
	resp, err := ts.client.AddWannago(ctx, &AttendanceRequest{EventID: id, UserID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Event.Wannagos, 1)
	assert.Equal(t, uint64(3), resp.Event.Wannagos[0].UserID)

	created, err := ts.client.CreateEvent(ctx, &models.CreateEventInput{
		Title: "Mine", Time: testNow.Add(time.Hour), Privacy: models.PrivacyPublic,
		FilterMaxAge: 99, FilterGender: models.GenderBoth,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), created.Event.CreatorID)
}

func TestEventHandler_InvitationsRequireMembership(t *testing.T) {
	validator := auth.NewJWTValidator(testSecret)
	ts := startServer(t, auth.UnaryServerInterceptor(validator))
	id := ts.addEvent(t, func(e *models.Event) { e.Privacy = models.PrivacyPrivate })

	as := func(userID uint64) context.Context {
		token, err := validator.Sign(userID, time.Hour)
		require.NoError(t, err)
		return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
	}

	_, err := ts.client.GetEvent(as(3), &EventRequest{EventID: id})
	assert.Equal(t, codes.NotFound, codeOf(err))

	_, err = ts.client.Invite(as(3), &AttendanceRequest{EventID: id, UserID: 1})
	assert.Equal(t, codes.FailedPrecondition, codeOf(err))

	resp, err := ts.client.Invite(as(2), &AttendanceRequest{EventID: id, UserID: 3})
	require.NoError(t, err)
	assert.True(t, resp.Event.IsInvited(3))

	// an invitee may pass the invitation on
	resp, err = ts.client.Invite(as(3), &AttendanceRequest{EventID: id, UserID: 1})
	require.NoError(t, err)
	assert.True(t, resp.Event.IsInvited(1))

	got, err := ts.client.GetEvent(as(3), &EventRequest{EventID: id})
	require.NoError(t, err)
	assert.Equal(t, id, got.Event.ID)

	_, err = ts.client.Uninvite(as(3), &AttendanceRequest{EventID: id, UserID: 1})
	assert.Equal(t, codes.FailedPrecondition, codeOf(err))

	resp, err = ts.client.Uninvite(as(1), &AttendanceRequest{EventID: id, UserID: 1})
	require.NoError(t, err)
	assert.False(t, resp.Event.IsInvited(1))
	assert.Equal(t, models.StateDeclined, models.StateOf(resp.Event, 1))

	_, err = ts.client.Invite(as(2), &AttendanceRequest{EventID: 999, UserID: 1})
	assert.Equal(t, codes.NotFound, codeOf(err))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err      error
		expected codes.Code
	}{
		{errs.ErrEventNotFound, codes.NotFound},
		{errs.ErrAlreadyInvited, codes.AlreadyExists},
		{errs.ErrIncompleteViewer, codes.FailedPrecondition},
		{errs.Invalid(errors.New("bad")), codes.InvalidArgument},
		{fmt.Errorf("%w: boom", errs.ErrQueryTimeout), codes.Unavailable},
		{errs.Transient(errors.New("bad conn")), codes.Unavailable},
		{context.Canceled, codes.Canceled},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.PermissionDenied, "no"), codes.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.expected, status.Code(toStatus(tt.err)))
		})
	}
	assert.NoError(t, toStatus(nil))
}
