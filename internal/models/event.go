package models

import "time"

// Privacy is the visibility tier of an event
type Privacy string

const (
	PrivacyPublic  Privacy = "PUBLIC"
	PrivacyGroup   Privacy = "GROUP"
	PrivacyPrivate Privacy = "PRIVATE"
)

// Valid reports whether p is one of the known tiers
func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyGroup, PrivacyPrivate:
		return true
	}
	return false
}

// SortMode selects the ordering of the primary and other feeds
type SortMode string

const (
	SortSoonest SortMode = "SOONEST"
	SortNewest  SortMode = "NEWEST"
)

// Valid reports whether s is a known sort mode
func (s SortMode) Valid() bool {
	return s == SortSoonest || s == SortNewest
}

// Point is a coordinate pair. X is longitude and Y is latitude, matching the
// POINT column layout.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Interest is a topic users and events can be tagged with
type Interest struct {
	ID   uint64 `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// UserSummary is the resolved form of a user attached to events
type UserSummary struct {
	ID       uint64 `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
}

// Event is a time and location bound happening users can discover and attend
type Event struct {
	ID           uint64    `db:"id" json:"id"`
	CreatorID    uint64    `db:"creator_id" json:"creator_id"`
	GroupID      *uint64   `db:"group_id" json:"group_id,omitempty"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	Location     string    `db:"location" json:"location"`
	PictureURL   *string   `db:"picture_url" json:"picture_url,omitempty"`
	Time         time.Time `db:"time" json:"time"`
	Coordinates  Point     `db:"coordinates" json:"coordinates"`
	Privacy      Privacy   `db:"privacy" json:"privacy"`
	FilterMinAge int       `db:"filter_min_age" json:"filter_min_age"`
	FilterMaxAge int       `db:"filter_max_age" json:"filter_max_age"`
	FilterGender Gender    `db:"filter_gender" json:"filter_gender"`
	// FilterRadius is stored and returned but discovery uses the platform radius.
	FilterRadius float64   `db:"filter_radius" json:"filter_radius"`
	Flags        int       `db:"flags" json:"flags"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`

	Creator          *UserSummary  `json:"creator,omitempty"`
	Invited          []UserSummary `json:"invited"`
	Wannagos         []Wannago     `json:"wannago"`
	RelatedInterests []Interest    `json:"related_interests"`
}

// InterestIDs returns the ids of the event's related interests
func (e *Event) InterestIDs() []uint64 {
	ids := make([]uint64, 0, len(e.RelatedInterests))
	for _, i := range e.RelatedInterests {
		ids = append(ids, i.ID)
	}
	return ids
}

// IsInvited reports whether userID is on the invited list
func (e *Event) IsInvited(userID uint64) bool {
	for _, u := range e.Invited {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// TimeRange is an inclusive window over the event time
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CreateEventInput carries everything needed to create an event
type CreateEventInput struct {
	CreatorID          uint64    `json:"creator_id" validate:"required"`
	GroupID            *uint64   `json:"group_id,omitempty"`
	Title              string    `json:"title" validate:"required,max=255"`
	Description        string    `json:"description" validate:"max=5000"`
	Location           string    `json:"location" validate:"max=255"`
	PictureURL         *string   `json:"picture_url,omitempty" validate:"omitempty,url"`
	Time               time.Time `json:"time" validate:"required"`
	Lat                float64   `json:"lat" validate:"gte=-90,lte=90"`
	Lng                float64   `json:"lng" validate:"gte=-180,lte=180"`
	Privacy            Privacy   `json:"privacy" validate:"required,privacy"`
	FilterMinAge       int       `json:"filter_min_age" validate:"gte=0,lte=150"`
	FilterMaxAge       int       `json:"filter_max_age" validate:"gte=0,lte=150,gtefield=FilterMinAge"`
	FilterGender       Gender    `json:"filter_gender" validate:"required,gender_filter"`
	FilterRadius       float64   `json:"filter_radius" validate:"gte=0"`
	RelatedInterestIDs []uint64  `json:"related_interest_ids"`
	InvitedIDs         []uint64  `json:"invited_ids"`
}

// EventUpdate is a partial update. Absent fields are left unchanged; a null
// value clears a nullable column.
type EventUpdate struct {
	Title              Optional[string]    `json:"title,omitzero"`
	Description        Optional[string]    `json:"description,omitzero"`
	Location           Optional[string]    `json:"location,omitzero"`
	PictureURL         Optional[string]    `json:"picture_url,omitzero"`
	Time               Optional[time.Time] `json:"time,omitzero"`
	Coordinates        Optional[Point]     `json:"coordinates,omitzero"`
	Privacy            Optional[Privacy]   `json:"privacy,omitzero"`
	FilterMinAge       Optional[int]       `json:"filter_min_age,omitzero"`
	FilterMaxAge       Optional[int]       `json:"filter_max_age,omitzero"`
	FilterGender       Optional[Gender]    `json:"filter_gender,omitzero"`
	FilterRadius       Optional[float64]   `json:"filter_radius,omitzero"`
	GroupID            Optional[uint64]    `json:"group_id,omitzero"`
	RelatedInterestIDs Optional[[]uint64]  `json:"related_interest_ids,omitzero"`
}

// Empty reports whether the update touches no field
func (u EventUpdate) Empty() bool {
	return !u.Title.Present() && !u.Description.Present() && !u.Location.Present() &&
		!u.PictureURL.Present() && !u.Time.Present() && !u.Coordinates.Present() &&
		!u.Privacy.Present() && !u.FilterMinAge.Present() && !u.FilterMaxAge.Present() &&
		!u.FilterGender.Present() && !u.FilterRadius.Present() && !u.GroupID.Present() &&
		!u.RelatedInterestIDs.Present()
}
