package libcable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_Encode(t *testing.T) {
	codec := JSONCodec{}

	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "subscribe",
			cmd:  SubscribeCommand("identifier"),
			want: `{"command":"subscribe","identifier":"identifier"}`,
		},
		{
			name: "unsubscribe",
			cmd:  UnsubscribeCommand("identifier"),
			want: `{"command":"unsubscribe","identifier":"identifier"}`,
		},
		{
			name: "subscribe with canonical identifier",
			cmd:  SubscribeCommand(NewChannel("ChatChannel", map[string]any{"room": "1"}).Identifier()),
			want: `{"command":"subscribe","identifier":"{\"channel\":\"ChatChannel\",\"room\":\"1\"}"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Encode(codec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMessageCommand(t *testing.T) {
	codec := JSONCodec{}

	cmd, err := MessageCommand(codec, "identifier", "speak", map[string]any{"message": "hi", "action": "other"})
	require.NoError(t, err)

	got, err := cmd.Encode(codec)
	require.NoError(t, err)
	assert.Equal(t, `{"command":"message","identifier":"identifier","data":"{\"action\":\"speak\",\"message\":\"hi\"}"}`, got)
}

func TestMessageCommand_EmptyParams(t *testing.T) {
	cmd, err := MessageCommand(JSONCodec{}, "identifier", "hello", map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, `{"action":"hello"}`, cmd.Data)
}

func TestMessageCommand_DoesNotMutateParams(t *testing.T) {
	params := map[string]any{"message": "hi"}

	_, err := MessageCommand(JSONCodec{}, "identifier", "speak", params)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"message": "hi"}, params)
}
