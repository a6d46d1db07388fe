package libcable

import (
	"bytes"
	"fmt"
	"sort"
)

const channelKey = "channel"

// Channel names a server side channel plus the params that select one stream of it, e.g.
// NewChannel("ChatChannel", map[string]any{"room": "1"}).
type Channel struct {
	Name   string
	Params map[string]any
}

func NewChannel(name string, params map[string]any) Channel {
	return Channel{Name: name, Params: params}
}

// Identifier returns the canonical JSON form of the channel: the "channel" key first, then params in ascending key
// order, without whitespace. A "channel" key inside Params is ignored. Values that cannot be encoded as JSON are
// encoded as their fmt representation.
func (c Channel) Identifier() string {
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		if k != channelKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b bytes.Buffer
	b.WriteByte('{')
	writeJSONValue(&b, channelKey)
	b.WriteByte(':')
	writeJSONValue(&b, c.Name)
	for _, k := range keys {
		b.WriteByte(',')
		writeJSONValue(&b, k)
		b.WriteByte(':')
		writeJSONValue(&b, c.Params[k])
	}
	b.WriteByte('}')
	return b.String()
}

func (c Channel) String() string {
	return c.Identifier()
}

func writeJSONValue(b *bytes.Buffer, v any) {
	bts, err := JSONCodec{}.Marshal(v)
	if err != nil {
		bts, _ = JSONCodec{}.Marshal(fmt.Sprint(v))
	}
	b.Write(bts)
}
