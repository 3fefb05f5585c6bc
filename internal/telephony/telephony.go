package telephony

import (
	"context"
	"errors"
	"time"
)

// EventType identifies inbound channel event variants from the control plane.
type EventType string

const (
	EventChannelStateChange EventType = "channel_state_change"
	EventChannelDtmf        EventType = "channel_dtmf_received"
	EventPlaybackFinished   EventType = "playback_finished"
	EventChannelDestroyed   EventType = "channel_destroyed"
	EventRecordingFinished  EventType = "recording_finished"
)

// Channel states reported via EventChannelStateChange.
const (
	StateUp   = "Up"
	StateDown = "Down"
)

// ErrChannelClosed reports that the underlying channel hung up or was
// destroyed while an operation was in flight.
var ErrChannelClosed = errors.New("channel closed")

// Event is one inbound event from the telephony control plane. RecordingName
// echoes the name passed to Record so a completion can be matched to the
// window that started it; bridges that omit it match any window.
type Event struct {
	Type          EventType `json:"type"`
	CallID        string    `json:"call_id"`
	State         string    `json:"state,omitempty"`
	Digit         string    `json:"digit,omitempty"`
	PlaybackID    string    `json:"playback_id,omitempty"`
	RecordingName string    `json:"recording_name,omitempty"`
	RecordingRef  string    `json:"recording_ref,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Channel is the control surface for one live call leg. Play and Record are
// asynchronous: completion arrives as PlaybackFinished / RecordingFinished
// events on the call's event stream.
type Channel interface {
	Answer(ctx context.Context) error
	Play(ctx context.Context, mediaRef string) (playbackID string, err error)
	Record(ctx context.Context, name, format string, maxDuration time.Duration, terminateOnDigit string) (recordingRef string, err error)
	Hangup(ctx context.Context) error
	Redirect(ctx context.Context, endpoint string) error
}
