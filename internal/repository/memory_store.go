package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"whatado/event-service/internal/errs"
	"whatado/event-service/internal/models"
	"whatado/event-service/internal/policy"
)

// MemoryUser seeds a user into a MemoryStore
type MemoryUser struct {
	ID        uint64
	Username  string
	BirthDate *time.Time
	Gender    models.Gender
	Location  *models.Point
	Interests []uint64
	Groups    []uint64
}

type pair struct {
	eventID, userID uint64
}

// MemoryStore is an in-process implementation of every repository. A single
// mutex serializes all access, which gives the same uniqueness guarantees the
// MySQL unique keys and row locks give.
type MemoryStore struct {
	mu sync.RWMutex

	users     map[uint64]*MemoryUser
	friends   map[uint64]models.IDSet
	interests map[uint64]string

	events         map[uint64]*models.Event
	eventInterests map[uint64][]uint64
	invites        map[pair]time.Time

	wannagos     map[uint64]*models.Wannago
	wannagoByKey map[pair]uint64

	nextEventID   uint64
	nextWannagoID uint64
	clock         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:          make(map[uint64]*MemoryUser),
		friends:        make(map[uint64]models.IDSet),
		interests:      make(map[uint64]string),
		events:         make(map[uint64]*models.Event),
		eventInterests: make(map[uint64][]uint64),
		invites:        make(map[pair]time.Time),
		wannagos:       make(map[uint64]*models.Wannago),
		wannagoByKey:   make(map[pair]uint64),
		clock:          func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source
func (s *MemoryStore) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

func (s *MemoryStore) AddUser(u MemoryUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	s.users[u.ID] = &cp
}

// AddFriend records that userID lists friendID as a friend. The relation is
// directed; the viewer snapshot unions both directions.
func (s *MemoryStore) AddFriend(userID, friendID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.friends[userID] == nil {
		s.friends[userID] = models.NewIDSet()
	}
	s.friends[userID][friendID] = struct{}{}
}

func (s *MemoryStore) RemoveFriend(userID, friendID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.friends[userID], friendID)
}

func (s *MemoryStore) AddInterest(id uint64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interests[id] = name
}

func (s *MemoryStore) GetViewerSnapshot(_ context.Context, userID uint64) (*models.ViewerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	friends := models.NewIDSet()
	for id := range s.friends[userID] {
		friends[id] = struct{}{}
	}
	for other, set := range s.friends {
		if set.Has(userID) {
			friends[other] = struct{}{}
		}
	}
	v := &models.ViewerSnapshot{
		UserID:    u.ID,
		Gender:    u.Gender,
		Friends:   friends,
		Interests: models.NewIDSet(u.Interests...),
		Groups:    models.NewIDSet(u.Groups...),
	}
	if u.BirthDate != nil {
		b := *u.BirthDate
		v.BirthDate = &b
	}
	if u.Location != nil {
		l := *u.Location
		v.Location = &l
	}
	return v, nil
}

func (s *MemoryStore) Exists(_ context.Context, userID uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok, nil
}

// hydrated returns a detached copy of the event with its relations resolved.
// Callers must hold the lock.
func (s *MemoryStore) hydrated(id uint64) *models.Event {
	base := s.events[id]
	e := *base
	if base.GroupID != nil {
		g := *base.GroupID
		e.GroupID = &g
	}
	if base.PictureURL != nil {
		p := *base.PictureURL
		e.PictureURL = &p
	}
	e.Creator = &models.UserSummary{ID: e.CreatorID}
	if u, ok := s.users[e.CreatorID]; ok {
		e.Creator.Username = u.Username
	}

	e.RelatedInterests = []models.Interest{}
	for _, iid := range s.eventInterests[id] {
		e.RelatedInterests = append(e.RelatedInterests, models.Interest{ID: iid, Name: s.interests[iid]})
	}
	sort.Slice(e.RelatedInterests, func(i, j int) bool { return e.RelatedInterests[i].ID < e.RelatedInterests[j].ID })

	e.Invited = []models.UserSummary{}
	for p := range s.invites {
		if p.eventID == id {
			e.Invited = append(e.Invited, s.summary(p.userID))
		}
	}
	sort.Slice(e.Invited, func(i, j int) bool { return e.Invited[i].ID < e.Invited[j].ID })

	e.Wannagos = []models.Wannago{}
	for _, w := range s.wannagos {
		if w.EventID == id {
			cp := *w
			u := s.summary(w.UserID)
			cp.User = &u
			e.Wannagos = append(e.Wannagos, cp)
		}
	}
	sort.Slice(e.Wannagos, func(i, j int) bool { return e.Wannagos[i].ID < e.Wannagos[j].ID })
	return &e
}

func (s *MemoryStore) summary(userID uint64) models.UserSummary {
	out := models.UserSummary{ID: userID}
	if u, ok := s.users[userID]; ok {
		out.Username = u.Username
	}
	return out
}

func (s *MemoryStore) inviteCount(eventID uint64) int {
	n := 0
	for p := range s.invites {
		if p.eventID == eventID {
			n++
		}
	}
	return n
}

func (s *MemoryStore) filter(keep func(e *models.Event) bool) []*models.Event {
	out := []*models.Event{}
	for id := range s.events {
		e := s.hydrated(id)
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func page(events []*models.Event, skip, take int) []*models.Event {
	if skip >= len(events) {
		return []*models.Event{}
	}
	end := skip + take
	if end > len(events) {
		end = len(events)
	}
	return events[skip:end]
}

func (s *MemoryStore) ListFeed(ctx context.Context, q FeedQuery) ([]*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Transient(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev := &policy.Evaluator{Radius: q.Radius, Now: func() time.Time { return q.Now }}
	events := s.filter(func(e *models.Event) bool {
		if e.Time.Before(q.Range.Start) || e.Time.After(q.Range.End) {
			return false
		}
		return ev.Evaluate(q.Viewer, e, q.Interests).Admitted
	})

	if q.Sort == models.SortNewest {
		sort.Slice(events, func(i, j int) bool {
			if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
				return events[i].CreatedAt.After(events[j].CreatedAt)
			}
			return events[i].ID < events[j].ID
		})
	} else {
		sort.Slice(events, func(i, j int) bool {
			if !events[i].Time.Equal(events[j].Time) {
				return events[i].Time.Before(events[j].Time)
			}
			return events[i].ID < events[j].ID
		})
	}
	return page(events, q.Skip, q.Take), nil
}

func (s *MemoryStore) ListSuggested(ctx context.Context, q SuggestedQuery) ([]*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Transient(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev := &policy.Evaluator{Radius: q.Radius, Now: func() time.Time { return q.Now }}
	counts := make(map[uint64]int)
	events := s.filter(func(e *models.Event) bool {
		if !e.Time.After(q.Now) {
			return false
		}
		if id, ok := s.wannagoByKey[pair{e.ID, q.Viewer.UserID}]; ok && s.wannagos[id].Declined {
			return false
		}
		if !ev.Admit(q.Viewer, e) {
			return false
		}
		counts[e.ID] = s.inviteCount(e.ID)
		return true
	})

	sort.Slice(events, func(i, j int) bool {
		ci, cj := counts[events[i].ID], counts[events[j].ID]
		if ci != cj {
			return ci > cj
		}
		return events[i].ID < events[j].ID
	})
	return page(events, 0, q.Limit), nil
}

func (s *MemoryStore) ListForMember(_ context.Context, userID uint64) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.filter(func(e *models.Event) bool {
		_, invited := s.invites[pair{e.ID, userID}]
		return e.CreatorID == userID || invited
	})
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Time.Equal(events[j].Time) {
			return events[i].Time.Before(events[j].Time)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

func (s *MemoryStore) ListFlagged(_ context.Context) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.filter(func(e *models.Event) bool { return e.Flags > 0 })
	sort.Slice(events, func(i, j int) bool {
		if events[i].Flags != events[j].Flags {
			return events[i].Flags > events[j].Flags
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uint64) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.events[id]; !ok {
		return nil, errs.ErrEventNotFound
	}
	return s.hydrated(id), nil
}

func (s *MemoryStore) checkRefs(e *models.Event, interestIDs, userIDs []uint64) error {
	if _, ok := s.users[e.CreatorID]; !ok {
		return errMissingReference
	}
	for _, id := range interestIDs {
		if _, ok := s.interests[id]; !ok {
			return errMissingReference
		}
	}
	for _, id := range userIDs {
		if _, ok := s.users[id]; !ok {
			return errMissingReference
		}
	}
	return nil
}

func (s *MemoryStore) Create(_ context.Context, e *models.Event, interestIDs, invitedIDs []uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRefs(e, interestIDs, invitedIDs); err != nil {
		return 0, err
	}
	s.nextEventID++
	id := s.nextEventID

	stored := *e
	stored.ID = id
	stored.Flags = 0
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.clock()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	stored.Creator, stored.Invited, stored.Wannagos, stored.RelatedInterests = nil, nil, nil, nil
	s.events[id] = &stored
	s.eventInterests[id] = dedupe(interestIDs)
	for _, uid := range dedupe(invitedIDs) {
		s.invites[pair{id, uid}] = stored.CreatedAt
	}
	return id, nil
}

func (s *MemoryStore) Update(_ context.Context, e *models.Event, interestIDs []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.events[e.ID]
	if !ok {
		return errs.ErrEventNotFound
	}
	if err := s.checkRefs(cur, interestIDs, nil); err != nil {
		return err
	}
	stored := *e
	stored.CreatorID = cur.CreatorID
	stored.Flags = cur.Flags
	stored.CreatedAt = cur.CreatedAt
	stored.Creator, stored.Invited, stored.Wannagos, stored.RelatedInterests = nil, nil, nil, nil
	s.events[e.ID] = &stored
	if interestIDs != nil {
		s.eventInterests[e.ID] = dedupe(interestIDs)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return errs.ErrEventNotFound
	}
	delete(s.events, id)
	delete(s.eventInterests, id)
	for p := range s.invites {
		if p.eventID == id {
			delete(s.invites, p)
		}
	}
	for wid, w := range s.wannagos {
		if w.EventID == id {
			delete(s.wannagos, wid)
			delete(s.wannagoByKey, pair{w.EventID, w.UserID})
		}
	}
	return nil
}

func (s *MemoryStore) IncrementFlags(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return errs.ErrEventNotFound
	}
	e.Flags++
	return nil
}

func (s *MemoryStore) Invite(_ context.Context, eventID, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return errs.ErrEventNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return errs.ErrUserNotFound
	}
	key := pair{eventID, userID}
	if _, ok := s.invites[key]; ok {
		return errs.ErrAlreadyInvited
	}
	s.invites[key] = s.clock()
	return nil
}

func (s *MemoryStore) Uninvite(_ context.Context, eventID, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return errs.ErrEventNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return errs.ErrUserNotFound
	}
	key := pair{eventID, userID}
	delete(s.invites, key)

	ts := s.clock()
	if id, ok := s.wannagoByKey[key]; ok {
		w := s.wannagos[id]
		w.Declined = true
		w.UpdatedAt = ts
		return nil
	}
	s.insertWannago(key, true, ts)
	return nil
}

func (s *MemoryStore) insertWannago(key pair, declined bool, ts time.Time) {
	s.nextWannagoID++
	s.wannagos[s.nextWannagoID] = &models.Wannago{
		ID:        s.nextWannagoID,
		EventID:   key.eventID,
		UserID:    key.userID,
		Declined:  declined,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	s.wannagoByKey[key] = s.nextWannagoID
}

func (s *MemoryStore) AddWannago(_ context.Context, eventID, userID uint64) (models.WannagoOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return 0, errMissingReference
	}
	if _, ok := s.users[userID]; !ok {
		return 0, errMissingReference
	}
	key := pair{eventID, userID}
	ts := s.clock()
	if id, ok := s.wannagoByKey[key]; ok {
		w := s.wannagos[id]
		if !w.Declined {
			return 0, errs.ErrWannagoExists
		}
		// a declined pair comes back to active instead of conflicting
		w.Declined = false
		w.UpdatedAt = ts
		return models.WannagoReactivated, nil
	}
	s.insertWannago(key, false, ts)
	return models.WannagoCreated, nil
}

func (s *MemoryStore) GetWannago(_ context.Context, id uint64) (*models.Wannago, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wannagos[id]
	if !ok {
		return nil, errs.ErrWannagoNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) UpdateWannago(_ context.Context, id uint64, declined bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wannagos[id]
	if !ok {
		return errs.ErrWannagoNotFound
	}
	if w.Declined != declined {
		w.Declined = declined
		w.UpdatedAt = s.clock()
	}
	if declined {
		delete(s.invites, pair{w.EventID, w.UserID})
	}
	return nil
}

func (s *MemoryStore) DeleteWannago(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wannagos[id]
	if !ok {
		return errs.ErrWannagoNotFound
	}
	delete(s.wannagos, id)
	delete(s.wannagoByKey, pair{w.EventID, w.UserID})
	return nil
}

var (
	_ UserRepository       = (*MemoryStore)(nil)
	_ EventRepository      = (*MemoryStore)(nil)
	_ AttendanceRepository = (*MemoryStore)(nil)
)
