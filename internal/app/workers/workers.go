// Package workers holds the consumer-group handlers that run behind the
// request path: the owner decision, traveler notifications and the status timeline.
package workers

import (
	"bookingengine/internal/app/pipeline"
)

const (
	GroupDecision      = "owner-decision"
	GroupNotifications = "traveler-notifications"
	GroupTimeline      = "booking-timeline"
)

// Set is the worker wiring of one process. Nil workers are skipped.
type Set struct {
	Decision      *DecisionWorker
	Notifications *NotificationWorker
	Timeline      *TimelineWorker
	// Members is the number of consumers started per group.
	Members int
}

// Register subscribes every configured worker to its topics on r.
func (s Set) Register(r *pipeline.Runner, topics pipeline.Topics) {
	if s.Decision != nil {
		r.Register(topics.Requests(), GroupDecision, s.Members, s.Decision)
	}
	if s.Notifications != nil {
		r.Register(topics.Status(), GroupNotifications, s.Members, s.Notifications)
	}
	if s.Timeline != nil {
		r.Register(topics.Requests(), GroupTimeline, s.Members, s.Timeline)
		r.Register(topics.Status(), GroupTimeline, s.Members, s.Timeline)
	}
}
