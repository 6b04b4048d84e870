package models

import "time"

// Wannago is a durable attendance intent for a (user, event) pair. Declined
// records stay behind as the user's negative decision.
type Wannago struct {
	ID        uint64       `db:"id" json:"id"`
	EventID   uint64       `db:"event_id" json:"event_id"`
	UserID    uint64       `db:"user_id" json:"user_id"`
	Declined  bool         `db:"declined" json:"declined"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
	User      *UserSummary `json:"user,omitempty"`
}

// WannagoOutcome describes what AddWannago did to the pair's record
type WannagoOutcome int

const (
	WannagoCreated WannagoOutcome = iota + 1
	WannagoReactivated
)

// AttendanceState is the derived state of a (user, event) pair
type AttendanceState string

const (
	StateNotInvolved AttendanceState = "NOT_INVOLVED"
	StateInvited     AttendanceState = "INVITED"
	StateWantsToGo   AttendanceState = "WANTS_TO_GO"
	StateDeclined    AttendanceState = "DECLINED"
)

// StateOf derives the attendance state of userID on a hydrated event. An
// active Wannago wins over an invitation; a declined one only counts when the
// user is not currently invited again.
func StateOf(e *Event, userID uint64) AttendanceState {
	var w *Wannago
	for i := range e.Wannagos {
		if e.Wannagos[i].UserID == userID {
			w = &e.Wannagos[i]
			break
		}
	}
	switch {
	case w != nil && !w.Declined:
		return StateWantsToGo
	case e.IsInvited(userID):
		return StateInvited
	case w != nil:
		return StateDeclined
	}
	return StateNotInvolved
}
