// Package wire defines the JSON envelopes exchanged over a session channel
// (C10): requests carry a client reference that replies echo back,
// broadcasts carry none.
package wire

import "encoding/json"

// Request is an inbound client message. Ref is opaque to the server and
// echoed verbatim in the corresponding Reply so the client can correlate
// requests to responses over a single multiplexed connection. Topic is
// "" for the join message itself (the topic being joined lives in
// Payload) and the joined topic for everything after.
type Request struct {
	Ref     string          `json:"ref"`
	Topic   string          `json:"topic,omitempty"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Reply answers a Request. Status is "ok" or "error"; Payload is the
// success or error body respectively.
type Reply struct {
	Ref     string          `json:"ref"`
	Status  string          `json:"status"`
	Payload json.RawMessage `json:"payload"`
}

// Broadcast fans a server-initiated event out to every other session
// joined to the same topic. It carries no ref since it answers nothing.
type Broadcast struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// OK builds a success reply for ref, marshaling payload to JSON.
func OK(ref string, payload any) (Reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Ref: ref, Status: StatusOK, Payload: body}, nil
}

// Fail builds an error reply for ref out of a reason string and optional
// extra fields (e.g. current_revision on a version_mismatch).
func Fail(ref, reason string, extra map[string]any) Reply {
	body := map[string]any{"reason": reason}
	for k, v := range extra {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		payload = json.RawMessage(`{"reason":"` + reason + `"}`)
	}
	return Reply{Ref: ref, Status: StatusError, Payload: payload}
}

// Event builds a broadcast for the given topic, event name and payload.
func Event(topic, event string, payload any) (Broadcast, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Broadcast{}, err
	}
	return Broadcast{Topic: topic, Event: event, Payload: body}, nil
}
