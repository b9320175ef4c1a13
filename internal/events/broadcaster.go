package events

import (
	"context"
	"sync"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/metrics"
)

const subscriptionBuffer = 8

// AllProjects subscribes to events of every project.
const AllProjects = ""

// Broadcaster hands events to in-process listeners such as owner dashboard streams. A listener
// whose buffer is full loses the event; publishers never wait.
type Broadcaster struct {
	mutex     sync.Mutex
	listeners map[*Subscription]struct{}
	closed    bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[*Subscription]struct{})}
}

// Subscribe registers a listener for projectID, or for every project when projectID is
// AllProjects. It returns nil after Close.
func (broadcaster *Broadcaster) Subscribe(projectID string) *Subscription {
	broadcaster.mutex.Lock()
	defer broadcaster.mutex.Unlock()
	if broadcaster.closed {
		return nil
	}
	subscription := &Subscription{
		broadcaster: broadcaster,
		projectID:   projectID,
		events:      make(chan Event, subscriptionBuffer),
	}
	broadcaster.listeners[subscription] = struct{}{}
	return subscription
}

func (broadcaster *Broadcaster) Publish(_ context.Context, event Event) error {
	broadcaster.mutex.Lock()
	defer broadcaster.mutex.Unlock()
	for subscription := range broadcaster.listeners {
		if !subscription.wants(event) {
			continue
		}
		select {
		case subscription.events <- event:
		default:
			metrics.ObserveDroppedStreamEvent()
		}
	}
	return nil
}

// Close ends every subscription. Later publishes are discarded.
func (broadcaster *Broadcaster) Close() {
	broadcaster.mutex.Lock()
	defer broadcaster.mutex.Unlock()
	if broadcaster.closed {
		return
	}
	broadcaster.closed = true
	for subscription := range broadcaster.listeners {
		broadcaster.detach(subscription)
	}
}

// detach requires the mutex.
func (broadcaster *Broadcaster) detach(subscription *Subscription) {
	if _, registered := broadcaster.listeners[subscription]; !registered {
		return
	}
	delete(broadcaster.listeners, subscription)
	close(subscription.events)
}

// Subscription receives the events of one project, or of all of them.
type Subscription struct {
	broadcaster *Broadcaster
	projectID   string
	events      chan Event
}

func (subscription *Subscription) wants(event Event) bool {
	return subscription.projectID == AllProjects || subscription.projectID == event.ProjectID
}

func (subscription *Subscription) Events() <-chan Event {
	if subscription == nil {
		return nil
	}
	return subscription.events
}

// Close unregisters the subscription and closes its channel. Repeated calls are no-ops.
func (subscription *Subscription) Close() {
	if subscription == nil {
		return
	}
	subscription.broadcaster.mutex.Lock()
	defer subscription.broadcaster.mutex.Unlock()
	subscription.broadcaster.detach(subscription)
}
