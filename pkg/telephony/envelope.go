// Package telephony implements the carrier integration for outbound calls: the
// REST client that originates calls, the JSON envelope codec for the duplex
// media-stream socket, and the status-webhook payload types.
//
// The media stream carries base64-encoded mu-law 8 kHz frames wrapped in small
// JSON envelopes following the Twilio Media Streams protocol: the carrier
// sends "start", "media" and "stop" events, and accepts "media", "mark" and
// "clear" events back.
package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Media stream event types.
const (
	EventStart = "start"
	EventMedia = "media"
	EventStop  = "stop"
	EventMark  = "mark"
	EventClear = "clear"
)

// Envelope is one message on the media-stream socket, inbound or outbound.
// Only the fields relevant to the Event type are populated.
type Envelope struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid,omitempty"`

	Start *StartPayload `json:"start,omitempty"`
	Media *MediaPayload `json:"media,omitempty"`
	Stop  *StopPayload  `json:"stop,omitempty"`
	Mark  *MarkPayload  `json:"mark,omitempty"`
}

// StartPayload describes the stream the carrier just opened. CustomParameters
// carries values set when the call was originated, which is how the media
// stream is linked back to its call session.
type StartPayload struct {
	AccountSID       string            `json:"accountSid"`
	CallSID          string            `json:"callSid"`
	StreamSID        string            `json:"streamSid"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaFormat describes the audio encoding of a media stream.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload carries one base64-encoded mu-law frame.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// StopPayload marks the end of the stream.
type StopPayload struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

// MarkPayload names a playback checkpoint.
type MarkPayload struct {
	Name string `json:"name"`
}

// ParseEnvelope decodes one raw media-stream message.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("telephony: parse envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("telephony: envelope missing event type")
	}
	return env, nil
}

// DecodeMediaFrame extracts the raw mu-law bytes from a media envelope.
func DecodeMediaFrame(env Envelope) ([]byte, error) {
	if env.Event != EventMedia || env.Media == nil {
		return nil, fmt.Errorf("telephony: envelope is not a media event")
	}
	frame, err := base64.StdEncoding.DecodeString(env.Media.Payload)
	if err != nil {
		return nil, fmt.Errorf("telephony: decode media payload: %w", err)
	}
	return frame, nil
}

// MediaMessage builds an outbound media envelope carrying mulaw audio.
func MediaMessage(streamSID string, mulaw []byte) ([]byte, error) {
	env := Envelope{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media: &MediaPayload{
			Payload: base64.StdEncoding.EncodeToString(mulaw),
		},
	}
	return json.Marshal(env)
}

// ClearMessage builds the envelope that flushes all queued-but-unplayed audio
// on the carrier side. Sent on barge-in so the remote party stops hearing the
// interrupted response immediately.
func ClearMessage(streamSID string) ([]byte, error) {
	return json.Marshal(Envelope{Event: EventClear, StreamSID: streamSID})
}

// MarkMessage builds a named playback checkpoint; the carrier echoes it back
// once all audio queued before it has played.
func MarkMessage(streamSID, name string) ([]byte, error) {
	env := Envelope{
		Event:     EventMark,
		StreamSID: streamSID,
		Mark:      &MarkPayload{Name: name},
	}
	return json.Marshal(env)
}
