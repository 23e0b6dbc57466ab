package codec

import "fmt"

// Interceptor wraps a Codec with the size guard and header validation the
// spec assigns to the outbound message path (§4.1): messages above
// MaxMessageSize are rejected before they reach a transport, and headers
// carrying a null value are rejected outright.
type Interceptor struct {
	codec          *Codec
	maxMessageSize int
}

// DefaultMaxMessageSize is used when NewInterceptor is given a non-positive
// size.
const DefaultMaxMessageSize = 20_000_000

// NewInterceptor wraps codec with a size guard of maxMessageSize bytes
// (DefaultMaxMessageSize if maxMessageSize <= 0).
func NewInterceptor(codec *Codec, maxMessageSize int) *Interceptor {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &Interceptor{codec: codec, maxMessageSize: maxMessageSize}
}

// Encode encodes v via the wrapped codec, then rejects the result if it
// exceeds the configured size limit.
func (ic *Interceptor) Encode(v any) ([]byte, error) {
	b, err := ic.codec.Encode(v)
	if err != nil {
		return nil, err
	}
	if len(b) > ic.maxMessageSize {
		return nil, &MessageTooLargeError{Size: len(b), Max: ic.maxMessageSize}
	}
	return b, nil
}

// Decode rejects oversized payloads before decoding.
func (ic *Interceptor) Decode(data []byte) (any, error) {
	if len(data) > ic.maxMessageSize {
		return nil, &MessageTooLargeError{Size: len(data), Max: ic.maxMessageSize}
	}
	return ic.codec.Decode(data)
}

// ValidateHeader rejects headers carrying a null value, per §4.1's
// reserved-key rule (grounded on the original interceptor's
// nonelist = [(k, v) for k, v in headers if v is None] check).
func (ic *Interceptor) ValidateHeader(headers map[string]any) error {
	for k, v := range headers {
		if v == nil {
			return &BadHeaderError{Reason: fmt.Sprintf("header %q has a null value", k)}
		}
	}
	return nil
}
