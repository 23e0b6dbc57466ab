package codec

import "fmt"

// UnknownTypeError is returned when Encode is given a Go value with no
// representation in the wire protocol (§4.1).
type UnknownTypeError struct {
	Value any
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("codec: unknown type %T", e.Value)
}

// BadPayloadError is returned when a tagged value's payload does not match
// the shape its tag requires (§4.1).
type BadPayloadError struct {
	Tag    string
	Reason string
}

func (e *BadPayloadError) Error() string {
	return fmt.Sprintf("codec: bad payload for tag %q: %s", e.Tag, e.Reason)
}

// MessageTooLargeError is returned by Interceptor.Encode when the encoded
// message exceeds the interceptor's size limit, and by Interceptor.Decode
// when the incoming payload does.
type MessageTooLargeError struct {
	Size, Max int
}

func (e *MessageTooLargeError) Error() string {
	return fmt.Sprintf("codec: message size %d exceeds max %d", e.Size, e.Max)
}

// BadHeaderError is returned by Interceptor.ValidateHeader when a header
// carries a null value, which the wire protocol forbids.
type BadHeaderError struct {
	Reason string
}

func (e *BadHeaderError) Error() string {
	return fmt.Sprintf("codec: bad header: %s", e.Reason)
}
