package libcable

import (
	"sync"
)

type (
	// commandSender is what subscriptions need from their consumer.
	commandSender interface {
		Send(cmd Command) bool
	}

	// Identifiable is anything keyed by a channel identifier: a Channel or a *Subscription.
	Identifiable interface {
		Identifier() string
	}

	// Subscription is the client side handle of one channel subscription. Callbacks run on the consumer's
	// operation queue goroutine; long work inside them delays every other event, hand it off instead.
	//
	// Perform and Unsubscribe queue their command on that same queue. Called from a callback, each call beyond
	// Options.QueueCapacity waits Options.QueuePushTimeout for room that only the callback's return can free, and is
	// then dropped. Issue bursts from another goroutine.
	Subscription struct {
		channel    Channel
		identifier string
		owner      *Subscriptions
		sender     commandSender
		codec      Codec
		logger     Logger

		mu             sync.RWMutex
		onConnected    func()
		onRejected     func()
		onReceived     func(data any)
		onDisconnected func()
		onFailed       func(err error)
	}
)

func newSubscription(owner *Subscriptions, channel Channel) *Subscription {
	identifier := channel.Identifier()
	return &Subscription{
		channel:        channel,
		identifier:     identifier,
		owner:          owner,
		sender:         owner.sender,
		codec:          owner.codec,
		logger:         owner.logger.WithField("identifier", identifier),
		onConnected:    func() {},
		onRejected:     func() {},
		onReceived:     func(any) {},
		onDisconnected: func() {},
		onFailed:       func(error) {},
	}
}

func (s *Subscription) Identifier() string { return s.identifier }

func (s *Subscription) Channel() Channel { return s.channel }

// OnConnected sets the callback fired when the server confirms the subscription.
func (s *Subscription) OnConnected(fn func()) *Subscription {
	s.mu.Lock()
	s.onConnected = orNoop(fn)
	s.mu.Unlock()
	return s
}

// OnRejected sets the callback fired when the server rejects the subscription. By then the subscription has been
// removed from its registry.
func (s *Subscription) OnRejected(fn func()) *Subscription {
	s.mu.Lock()
	s.onRejected = orNoop(fn)
	s.mu.Unlock()
	return s
}

// OnReceived sets the callback fired with each decoded payload delivered to the channel.
func (s *Subscription) OnReceived(fn func(data any)) *Subscription {
	if fn == nil {
		fn = func(any) {}
	}
	s.mu.Lock()
	s.onReceived = fn
	s.mu.Unlock()
	return s
}

// OnDisconnected sets the callback fired when the underlying connection closes.
func (s *Subscription) OnDisconnected(fn func()) *Subscription {
	s.mu.Lock()
	s.onDisconnected = orNoop(fn)
	s.mu.Unlock()
	return s
}

// OnFailed sets the callback fired when the underlying connection fails.
func (s *Subscription) OnFailed(fn func(err error)) *Subscription {
	if fn == nil {
		fn = func(error) {}
	}
	s.mu.Lock()
	s.onFailed = fn
	s.mu.Unlock()
	return s
}

// Perform invokes action on the server side channel with params. It reports whether the message was accepted for
// delivery; nothing is buffered when the connection is not open. See Subscription for calls made from callbacks.
func (s *Subscription) Perform(action string, params map[string]any) bool {
	cmd, err := MessageCommand(s.codec, s.identifier, action, params)
	if err != nil {
		s.logger.Errorf("cannot perform %q: %s", action, err)
		return false
	}
	return s.sender.Send(cmd)
}

// Unsubscribe removes the subscription from its registry, notifying the server if it was registered.
func (s *Subscription) Unsubscribe() {
	s.owner.Remove(s)
}

func (s *Subscription) notifyConnected() {
	s.mu.RLock()
	fn := s.onConnected
	s.mu.RUnlock()
	fn()
}

func (s *Subscription) notifyRejected() {
	s.mu.RLock()
	fn := s.onRejected
	s.mu.RUnlock()
	fn()
}

func (s *Subscription) notifyReceived(data any) {
	s.mu.RLock()
	fn := s.onReceived
	s.mu.RUnlock()
	fn(data)
}

func (s *Subscription) notifyDisconnected() {
	s.mu.RLock()
	fn := s.onDisconnected
	s.mu.RUnlock()
	fn()
}

func (s *Subscription) notifyFailed(err error) {
	s.mu.RLock()
	fn := s.onFailed
	s.mu.RUnlock()
	fn(err)
}

func orNoop(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	return fn
}
