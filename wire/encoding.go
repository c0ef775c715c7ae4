package wire

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// Encoding marshals v2 frame payloads. JSON is the default and is always
// offered; CBOR is used only when the peer's handshake negotiates it.
// v1 is JSON-only by definition.
type Encoding interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONEncoding is the default payload encoding.
type JSONEncoding struct{}

func (JSONEncoding) Name() string                       { return "json" }
func (JSONEncoding) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONEncoding) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// CBOREncoding is the optional negotiated payload encoding. It reuses the
// records' json field tags, so the two encodings stay key-compatible.
type CBOREncoding struct{}

func (CBOREncoding) Name() string                       { return "cbor" }
func (CBOREncoding) Marshal(v any) ([]byte, error)      { return cbor.Marshal(v) }
func (CBOREncoding) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

// EncodingByName resolves an encoding name from a handshake. Unknown
// names return false; the connection then falls back to JSON.
func EncodingByName(name string) (Encoding, bool) {
	switch name {
	case "json":
		return JSONEncoding{}, true
	case "cbor":
		return CBOREncoding{}, true
	}
	return nil, false
}
