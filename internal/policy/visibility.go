package policy

import (
	"time"

	"whatado/event-service/internal/models"
)

// Reason names the first rule an event failed for a viewer
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonIncompleteViewer Reason = "incomplete_viewer"
	ReasonPrivacy          Reason = "privacy"
	ReasonAge              Reason = "age"
	ReasonGender           Reason = "gender"
	ReasonInterests        Reason = "interests"
	ReasonDistance         Reason = "distance"
	// ReasonTimeWindow is reported by feeds for rows outside the requested window.
	ReasonTimeWindow       Reason = "time_window"
)

// InterestMode selects how the interest rule is applied
type InterestMode int

const (
	// InterestsMatch admits events with no interests or at least one shared interest.
	InterestsMatch InterestMode = iota
	// InterestsComplement admits events that have interests, none shared with the viewer.
	InterestsComplement
	// InterestsIgnored skips the interest rule.
	InterestsIgnored
)

// Decision is the outcome of evaluating one event for one viewer
type Decision struct {
	Admitted bool
	Reason   Reason
}

func deny(r Reason) Decision { return Decision{Reason: r} }

// Evaluator applies the visibility rules. Radius is the platform discovery
// radius; the event's own filter radius is not consulted.
type Evaluator struct {
	Radius float64
	Now    func() time.Time
}

func NewEvaluator(radius float64) *Evaluator {
	return &Evaluator{Radius: radius, Now: time.Now}
}

func (p *Evaluator) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// Admit reports whether the viewer may see the event in the primary feed
func (p *Evaluator) Admit(viewer *models.ViewerSnapshot, e *models.Event) bool {
	return p.Evaluate(viewer, e, InterestsMatch).Admitted
}

// Evaluate runs every rule in order and stops at the first failure
func (p *Evaluator) Evaluate(viewer *models.ViewerSnapshot, e *models.Event, mode InterestMode) Decision {
	if !viewer.Complete() {
		return deny(ReasonIncompleteViewer)
	}

	switch e.Privacy {
	case models.PrivacyPublic:
	case models.PrivacyGroup:
		if !viewer.Friends.Has(e.CreatorID) {
			return deny(ReasonPrivacy)
		}
	default:
		return deny(ReasonPrivacy)
	}

	age := AgeAt(*viewer.BirthDate, p.now())
	if age < e.FilterMinAge || age > e.FilterMaxAge {
		return deny(ReasonAge)
	}
	if e.FilterGender != models.GenderBoth && e.FilterGender != viewer.Gender {
		return deny(ReasonGender)
	}

	interests := e.InterestIDs()
	switch mode {
	case InterestsMatch:
		if len(interests) > 0 && !viewer.Interests.Intersects(interests) {
			return deny(ReasonInterests)
		}
	case InterestsComplement:
		if len(interests) == 0 || viewer.Interests.Intersects(interests) {
			return deny(ReasonInterests)
		}
	}

	coords := e.Coordinates
	if !WithinRange(viewer.Location, &coords, p.Radius) {
		return deny(ReasonDistance)
	}
	return Decision{Admitted: true}
}
