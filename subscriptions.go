package libcable

import (
	"sync"
)

// Subscriptions creates and tracks the channel subscriptions of a consumer and routes inbound frames to them.
//
//	subscription := consumer.Subscriptions().Create(libcable.NewChannel("AppearanceChannel", nil))
//	consumer.Subscriptions().Remove(subscription)
//
// Create, Remove and Contains may be called from any goroutine, including from inside subscription callbacks.
// Notifications are only ever delivered from the consumer's operation queue.
type Subscriptions struct {
	sender commandSender
	codec  Codec
	logger Logger

	mu      sync.RWMutex
	order   []string
	entries map[string]*Subscription
}

func newSubscriptions(logger Logger, sender commandSender, codec Codec) *Subscriptions {
	return &Subscriptions{
		sender:  sender,
		codec:   codec,
		logger:  logger.WithField("type", "subscriptions"),
		entries: make(map[string]*Subscription),
	}
}

// Create registers a subscription for channel and returns it. An existing subscription with the same identifier is
// replaced. Nothing is sent: the subscribe command goes out with the next (re)connection.
func (s *Subscriptions) Create(channel Channel) *Subscription {
	sub := newSubscription(s, channel)

	s.mu.Lock()
	if _, ok := s.entries[sub.identifier]; !ok {
		s.order = append(s.order, sub.identifier)
	}
	s.entries[sub.identifier] = sub
	s.mu.Unlock()

	s.logger.Debugf("created subscription %s", sub.identifier)
	return sub
}

// Remove drops the subscription keyed by target's identifier. The unsubscribe command is sent only if something
// was registered; the return value reports whether it was. The command is queued like Subscription.Perform, so
// the same limit applies to bursts of removals from inside callbacks.
func (s *Subscriptions) Remove(target Identifiable) bool {
	identifier := target.Identifier()

	s.mu.Lock()
	_, ok := s.entries[identifier]
	if ok {
		s.deleteLocked(identifier)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	s.logger.Debugf("removed subscription %s", identifier)
	s.sender.Send(UnsubscribeCommand(identifier))
	return true
}

func (s *Subscriptions) Contains(target Identifiable) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[target.Identifier()]
	return ok
}

func (s *Subscriptions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Identifiers lists registered identifiers in creation order.
func (s *Subscriptions) Identifiers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.order...)
}

// reload sends a subscribe command for every registered subscription. It runs on the queue right after the
// connection opens, so write goes straight to the socket.
func (s *Subscriptions) reload(write func(Command)) {
	for _, identifier := range s.Identifiers() {
		write(SubscribeCommand(identifier))
	}
}

func (s *Subscriptions) notifyConnected(identifier string) {
	for _, sub := range s.matching(identifier) {
		sub.notifyConnected()
	}
}

func (s *Subscriptions) notifyDisconnected() {
	for _, sub := range s.all() {
		sub.notifyDisconnected()
	}
}

func (s *Subscriptions) notifyReceived(identifier string, data any) {
	for _, sub := range s.matching(identifier) {
		sub.notifyReceived(data)
	}
}

func (s *Subscriptions) notifyFailed(err error) {
	for _, sub := range s.all() {
		sub.notifyFailed(err)
	}
}

// reject removes every subscription keyed by identifier and only then notifies them, so a rejected subscription is
// no longer found from inside its own callback.
func (s *Subscriptions) reject(identifier string) {
	s.mu.Lock()
	removed := s.matchingLocked(identifier)
	for _, sub := range removed {
		s.deleteLocked(sub.identifier)
	}
	s.mu.Unlock()

	for _, sub := range removed {
		s.logger.Infof("subscription %s rejected", sub.identifier)
		sub.notifyRejected()
	}
}

func (s *Subscriptions) matching(identifier string) []*Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.matchingLocked(identifier)
}

func (s *Subscriptions) matchingLocked(identifier string) []*Subscription {
	if sub, ok := s.entries[identifier]; ok {
		return []*Subscription{sub}
	}
	return nil
}

func (s *Subscriptions) all() []*Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]*Subscription, 0, len(s.order))
	for _, identifier := range s.order {
		subs = append(subs, s.entries[identifier])
	}
	return subs
}

func (s *Subscriptions) deleteLocked(identifier string) {
	delete(s.entries, identifier)
	for i, id := range s.order {
		if id == identifier {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
