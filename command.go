package libcable

import (
	"github.com/pkg/errors"
)

type CommandType string

const (
	CommandSubscribe   CommandType = "subscribe"
	CommandUnsubscribe CommandType = "unsubscribe"
	CommandMessage     CommandType = "message"
)

const actionKey = "action"

// Command is an outbound envelope. Field order is part of the wire format.
type Command struct {
	Command    CommandType `json:"command"`
	Identifier string      `json:"identifier"`
	Data       string      `json:"data,omitempty"`
}

func SubscribeCommand(identifier string) Command {
	return Command{Command: CommandSubscribe, Identifier: identifier}
}

func UnsubscribeCommand(identifier string) Command {
	return Command{Command: CommandUnsubscribe, Identifier: identifier}
}

// MessageCommand builds a "message" command whose data is the encoded params merged with {"action": action}.
// The action key always wins over a param with the same name.
func MessageCommand(codec Codec, identifier, action string, params map[string]any) (Command, error) {
	payload := make(map[string]any, len(params)+1)
	for k, v := range params {
		payload[k] = v
	}
	payload[actionKey] = action

	data, err := codec.Marshal(payload)
	if err != nil {
		return Command{}, errors.Wrapf(err, "cannot encode %q payload", action)
	}

	return Command{Command: CommandMessage, Identifier: identifier, Data: string(data)}, nil
}

// Encode returns the wire form of c.
func (c Command) Encode(codec Codec) (string, error) {
	bts, err := codec.Marshal(c)
	if err != nil {
		return "", errors.Wrapf(err, "cannot encode %s command", c.Command)
	}
	return string(bts), nil
}
