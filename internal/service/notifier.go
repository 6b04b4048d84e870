package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"whatado/event-service/internal/models"
	"whatado/event-service/internal/pubsub"
	"whatado/event-service/pkg/logger"
)

// Notifier builds push notification triggers for attendance changes.
// Delivery failures are logged and never fail the mutation.
type Notifier struct {
	pub pubsub.Publisher
	log *logger.Logger
}

func NewNotifier(pub pubsub.Publisher, log *logger.Logger) *Notifier {
	return &Notifier{pub: pub, log: log}
}

func eventData(e *models.Event) map[string]string {
	return map[string]string{"type": "event", "eventId": strconv.FormatUint(e.ID, 10)}
}

// Invited tells userIDs they were invited to e
func (n *Notifier) Invited(ctx context.Context, e *models.Event, userIDs ...uint64) {
	if len(userIDs) == 0 {
		return
	}
	n.send(ctx, models.PushNotification{
		Recipients: userIDs,
		Title:      "You're Invited!",
		Body:       fmt.Sprintf("You're invited to %s", e.Title),
		Data:       eventData(e),
	})
}

// WannagoAdded tells the creator of e that someone wants to go
func (n *Notifier) WannagoAdded(ctx context.Context, e *models.Event) {
	n.send(ctx, models.PushNotification{
		Recipients: []uint64{e.CreatorID},
		Title:      "Event Activity",
		Body:       "Someone wants to go to your event!",
		Data:       eventData(e),
	})
}

func (n *Notifier) send(ctx context.Context, msg models.PushNotification) {
	if err := n.pub.Publish(ctx, msg); err != nil {
		n.log.FromContext(ctx).WithFields(logrus.Fields{
			"recipients": msg.Recipients,
			"event_id":   msg.Data["eventId"],
			"error":      err.Error(),
		}).Warn("failed to publish push notification")
	}
}
