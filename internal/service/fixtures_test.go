package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"whatado/event-service/internal/models"
	"whatado/event-service/internal/repository"
	"whatado/event-service/internal/validation"
	"whatado/event-service/pkg/logger"
	"whatado/event-service/pkg/metrics"
)

var testNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

const (
	viewerID  = uint64(1)
	creatorID = uint64(2)
	hiking    = uint64(100)
	chess     = uint64(200)
)

// MockPublisher is a mock implementation of pubsub.Publisher
type MockPublisher struct {
	mock.Mock
	mu   sync.Mutex
	sent []models.PushNotification
}

func (m *MockPublisher) Publish(ctx context.Context, n models.PushNotification) error {
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockPublisher) Close() error { return nil }

func (m *MockPublisher) Sent() []models.PushNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PushNotification(nil), m.sent...)
}

type fixture struct {
	t          *testing.T
	store      *repository.MemoryStore
	pub        *MockPublisher
	metrics    *metrics.Metrics
	log        *logger.Logger
	opts       Options
	discovery  DiscoveryService
	attendance AttendanceService
	events     EventService
}

func testLogger() *logger.Logger {
	l := logger.NewLogger("event-service-test", "error")
	l.SetOutput(io.Discard)
	return l
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	store.SetClock(func() time.Time { return testNow })

	birth := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	store.AddUser(repository.MemoryUser{
		ID:        viewerID,
		Username:  "viewer",
		BirthDate: &birth,
		Gender:    models.GenderFemale,
		Location:  &models.Point{Lat: 40, Lng: -111},
		Interests: []uint64{hiking},
	})
	store.AddUser(repository.MemoryUser{ID: creatorID, Username: "alice"})
	for id := uint64(3); id <= 30; id++ {
		store.AddUser(repository.MemoryUser{ID: id, Username: "user"})
	}
	store.AddInterest(hiking, "hiking")
	store.AddInterest(chess, "chess")

	pub := &MockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	opts := DefaultOptions()
	opts.Now = func() time.Time { return testNow }

	log := testLogger()
	m := metrics.NewMetrics("events_test", prometheus.NewRegistry())
	notifier := NewNotifier(pub, log)

	return &fixture{
		t:          t,
		store:      store,
		pub:        pub,
		metrics:    m,
		log:        log,
		opts:       opts,
		discovery:  NewDiscoveryService(store, store, opts, log, m),
		attendance: NewAttendanceService(store, store, notifier, m),
		events:     NewEventService(store, store, validation.New(), notifier, opts),
	}
}

// addEvent stores a public, everyone-welcome event one day out, near the viewer
func (f *fixture) addEvent(mutate func(e *models.Event), interests []uint64, invited []uint64) uint64 {
	f.t.Helper()
	e := &models.Event{
		CreatorID:    creatorID,
		Title:        "event",
		Time:         testNow.Add(24 * time.Hour),
		Coordinates:  models.Point{Lat: 40.01, Lng: -111.01},
		Privacy:      models.PrivacyPublic,
		FilterMinAge: 0,
		FilterMaxAge: 150,
		FilterGender: models.GenderBoth,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	if mutate != nil {
		mutate(e)
	}
	id, err := f.store.Create(context.Background(), e, interests, invited)
	require.NoError(f.t, err)
	return id
}

func (f *fixture) week() models.TimeRange {
	return models.TimeRange{Start: testNow, End: testNow.Add(7 * 24 * time.Hour)}
}

func (f *fixture) primary(take, skip int, sort models.SortMode) []*models.Event {
	f.t.Helper()
	events, err := f.discovery.PrimaryFeed(context.Background(), FeedRequest{
		ViewerID: viewerID, Range: f.week(), Take: take, Skip: skip, Sort: sort,
	})
	require.NoError(f.t, err)
	return events
}

func (f *fixture) other(take, skip int) []*models.Event {
	f.t.Helper()
	events, err := f.discovery.OtherFeed(context.Background(), FeedRequest{
		ViewerID: viewerID, Range: f.week(), Take: take, Skip: skip, Sort: models.SortSoonest,
	})
	require.NoError(f.t, err)
	return events
}

func ids(events []*models.Event) []uint64 {
	out := make([]uint64, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}
