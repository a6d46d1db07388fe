package libcable

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Codec encodes outbound payloads and decodes inbound ones.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec is the default Codec. Map keys are emitted in sorted order and HTML characters are left unescaped so
// encodings are stable byte for byte.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(ErrDecode, err.Error())
	}
	return nil
}
