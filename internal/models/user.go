package models

import (
	"sort"
	"time"
)

// Gender is a user's gender, or an event's demographic filter. GenderBoth is
// only meaningful as a filter value.
type Gender string

const (
	GenderFemale Gender = "FEMALE"
	GenderMale   Gender = "MALE"
	GenderBoth   Gender = "BOTH"
)

// ValidUserGender reports whether g is a real gender value
func (g Gender) ValidUserGender() bool {
	return g == GenderFemale || g == GenderMale
}

// ValidFilter reports whether g may be used as an event filter
func (g Gender) ValidFilter() bool {
	return g.ValidUserGender() || g == GenderBoth
}

// IDSet is a read-only set of identifiers
type IDSet map[uint64]struct{}

// NewIDSet builds a set from ids
func NewIDSet(ids ...uint64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership
func (s IDSet) Has(id uint64) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of ids
func (s IDSet) Len() int { return len(s) }

// Slice returns the ids in ascending order
func (s IDSet) Slice() []uint64 {
	out := make([]uint64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Intersects reports whether any of ids is in the set
func (s IDSet) Intersects(ids []uint64) bool {
	for _, id := range ids {
		if s.Has(id) {
			return true
		}
	}
	return false
}

// ViewerSnapshot is the per-request view of a user's social graph and profile
// used by discovery. It is built once per request and never mutated.
type ViewerSnapshot struct {
	UserID    uint64
	BirthDate *time.Time
	Gender    Gender
	Location  *Point
	// Friends holds users linked to the viewer in either direction.
	Friends   IDSet
	Interests IDSet
	Groups    IDSet
}

// Complete reports whether the snapshot carries everything the demographic
// and geospatial filters need
func (v *ViewerSnapshot) Complete() bool {
	return v != nil && v.BirthDate != nil && v.Location != nil && v.Gender.ValidUserGender()
}

// PushNotification is the trigger handed to the push delivery collaborator
type PushNotification struct {
	Recipients []uint64          `json:"recipients"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data"`
}
