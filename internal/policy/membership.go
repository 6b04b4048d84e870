package policy

import "whatado/event-service/internal/models"

// CanInvite reports whether actorID may add someone to the event's invited
// set: the creator or anyone already invited.
func CanInvite(e *models.Event, actorID uint64) bool {
	return e.CreatorID == actorID || e.IsInvited(actorID)
}

// CanUninvite reports whether actorID may withdraw userID's invitation. The
// creator may remove anyone; everyone else only themselves.
func CanUninvite(e *models.Event, actorID, userID uint64) bool {
	return e.CreatorID == actorID || actorID == userID
}

// CanView reports whether actorID may load the event directly. PRIVATE events
// are only reachable by their creator, invitees and users holding a Wannago.
func CanView(e *models.Event, actorID uint64) bool {
	if e.Privacy != models.PrivacyPrivate || e.CreatorID == actorID || e.IsInvited(actorID) {
		return true
	}
	for _, w := range e.Wannagos {
		if w.UserID == actorID {
			return true
		}
	}
	return false
}
