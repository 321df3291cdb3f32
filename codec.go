package relay

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Codec defines the deserialization contract for configuration data.
// Implement this interface to use alternative formats like TOML, HCL, or custom binary formats.
type Codec interface {
	// Unmarshal deserializes bytes into a value.
	Unmarshal(data []byte, v any) error

	// ContentType returns the MIME type for observability and debugging.
	ContentType() string
}

// JSONCodec implements Codec using encoding/json.
type JSONCodec struct{}

// Unmarshal deserializes JSON bytes into v.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// ContentType returns the JSON MIME type.
func (JSONCodec) ContentType() string {
	return "application/json"
}

// YAMLCodec implements Codec using gopkg.in/yaml.v3.
type YAMLCodec struct{}

// Unmarshal deserializes YAML bytes into v.
func (YAMLCodec) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

// ContentType returns the YAML MIME type.
func (YAMLCodec) ContentType() string {
	return "application/x-yaml"
}

var (
	_ Codec = JSONCodec{}
	_ Codec = YAMLCodec{}
)

// CodecFor returns the built-in codec for a content type.
func CodecFor(contentType string) (Codec, error) {
	switch contentType {
	case "application/json", "json":
		return JSONCodec{}, nil
	case "application/x-yaml", "application/yaml", "yaml", "yml":
		return YAMLCodec{}, nil
	default:
		return nil, fmt.Errorf("no codec for content type %q", contentType)
	}
}

// Decode returns a stream of documents from s unmarshaled into T. A document
// that cannot be decoded fails the stream with a TransactionError.
func Decode[T any](s Stream[[]byte], codec Codec) Stream[T] {
	return Map(s, func(raw []byte) (T, error) {
		var v T
		if err := codec.Unmarshal(raw, &v); err != nil {
			return v, fmt.Errorf("decode %s: %w", codec.ContentType(), err)
		}
		return v, nil
	})
}
