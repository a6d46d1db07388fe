package libcable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSubscription_Perform(t *testing.T) {
	subs, sender := newTestSubscriptions(t)
	sub := subs.Create(NewChannel("ChatChannel", map[string]any{"room": "1"}))

	var sent Command
	sender.On("Send", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(0).(Command)
	}).Return(true).Once()

	ok := sub.Perform("speak", map[string]any{"message": "hi", "action": "ignored"})

	require.True(t, ok)
	assert.Equal(t, CommandMessage, sent.Command)
	assert.Equal(t, `{"channel":"ChatChannel","room":"1"}`, sent.Identifier)
	assert.JSONEq(t, `{"action":"speak","message":"hi"}`, sent.Data)
}

func TestSubscription_PerformWithoutParams(t *testing.T) {
	subs, sender := newTestSubscriptions(t)
	sub := subs.Create(NewChannel("ChatChannel", nil))

	sender.On("Send", Command{
		Command:    CommandMessage,
		Identifier: `{"channel":"ChatChannel"}`,
		Data:       `{"action":"hello"}`,
	}).Return(true).Once()

	assert.True(t, sub.Perform("hello", nil))
	sender.AssertExpectations(t)
}

func TestSubscription_PerformReportsRejectedSend(t *testing.T) {
	subs, sender := newTestSubscriptions(t)
	sub := subs.Create(NewChannel("ChatChannel", nil))
	sender.On("Send", mock.Anything).Return(false)

	assert.False(t, sub.Perform("hello", nil))
}

func TestSubscription_PerformUnencodableParams(t *testing.T) {
	subs, sender := newTestSubscriptions(t)
	sub := subs.Create(NewChannel("ChatChannel", nil))

	assert.False(t, sub.Perform("hello", map[string]any{"fn": func() {}}))
	sender.AssertNotCalled(t, "Send", mock.Anything)
}

func TestSubscription_NilCallbacksAreNoops(t *testing.T) {
	subs, _ := newTestSubscriptions(t)
	sub := subs.Create(NewChannel("ChatChannel", nil)).
		OnConnected(nil).
		OnRejected(nil).
		OnReceived(nil).
		OnDisconnected(nil).
		OnFailed(nil)

	assert.NotPanics(t, func() {
		sub.notifyConnected()
		sub.notifyRejected()
		sub.notifyReceived("x")
		sub.notifyDisconnected()
		sub.notifyFailed(ErrConnectionClosed)
	})
}

func TestSubscription_LastCallbackWins(t *testing.T) {
	subs, _ := newTestSubscriptions(t)
	sub := subs.Create(NewChannel("ChatChannel", nil))

	var got string
	sub.OnReceived(func(any) { got = "first" })
	sub.OnReceived(func(any) { got = "second" })
	sub.notifyReceived(nil)

	assert.Equal(t, "second", got)
}
