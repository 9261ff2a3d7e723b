// Package envelope wraps and unwraps typed payloads for the wire.
//
// Every transmitted message carries a 'type' and a 'resource' field on top of
// the application payload, serialized as a UTF-8 json object.
package envelope

import (
	"github.com/aceframe/acebus/ace"
	"github.com/aceframe/acebus/encoding/json"
)

const (
	// Default message type.
	TypeData = "data"

	// Key of the message type field.
	KeyType = "type"

	// Key of the owning resource's name field.
	KeyResource = "resource"

	// Key of the liveness flag in a status payload.
	KeyUp = "up"
)

// Bytes are not a valid serialized envelope.
var ErrMalformedEnvelope = ace.NewErrf("malformed message envelope")

// Envelope is the decoded wire message, bookkeeping fields included.
type Envelope map[string]any

// Message type, TypeData unless the publisher set otherwise.
func (e Envelope) Type() string {
	if v, ok := e[KeyType].(string); ok {
		return v
	}
	return ""
}

// Name of the resource that published the message.
func (e Envelope) Resource() string {
	if v, ok := e[KeyResource].(string); ok {
		return v
	}
	return ""
}

// Encode payload for the wire, stamping msgType and resource over any
// caller-supplied 'type' / 'resource' keys. A nil payload is an empty one.
func Encode(payload map[string]any, msgType string, resource string) ([]byte, error) {
	if msgType == "" {
		msgType = TypeData
	}
	merged := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		merged[k] = v
	}
	merged[KeyType] = msgType
	merged[KeyResource] = resource

	buf, err := json.WriteJson(merged)
	if err != nil {
		return nil, ace.WrapErrf(err, "failed to encode message envelope")
	}
	return buf, nil
}

// Decode wire bytes, ErrMalformedEnvelope when the bytes are not a valid
// serialized object.
func Decode(buf []byte) (Envelope, error) {
	var env Envelope
	if err := json.ParseJson(buf, &env); err != nil {
		return nil, ace.WrapErrf(ErrMalformedEnvelope, "%v", err)
	}
	if env == nil {
		return nil, ErrMalformedEnvelope
	}
	return env, nil
}

// Build status payload for the api-callback contract, extra with 'up' set.
func BuildStatus(up bool, extra map[string]any) map[string]any {
	status := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		status[k] = v
	}
	status[KeyUp] = up
	return status
}
