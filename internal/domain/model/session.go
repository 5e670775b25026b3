package model

import "time"

// LifecycleEvent names a point in a gateway session's lifecycle.
type LifecycleEvent string

const (
	EventPreConnect  LifecycleEvent = "pre-connect"
	EventPostConnect LifecycleEvent = "post-connect"
	EventDoneConnect LifecycleEvent = "done-connect"
	EventPrePublish  LifecycleEvent = "pre-publish"
	EventPostPublish LifecycleEvent = "post-publish"
	EventDonePublish LifecycleEvent = "done-publish"
	EventPrePlay     LifecycleEvent = "pre-play"
	EventPostPlay    LifecycleEvent = "post-play"
	EventDonePlay    LifecycleEvent = "done-play"
)

// LifecycleEvents lists every lifecycle point in session order.
var LifecycleEvents = []LifecycleEvent{
	EventPreConnect,
	EventPostConnect,
	EventDoneConnect,
	EventPrePublish,
	EventPostPublish,
	EventDonePublish,
	EventPrePlay,
	EventPostPlay,
	EventDonePlay,
}

// ParseLifecycleEvent returns the event named by s, or false if s is not a
// known lifecycle point.
func ParseLifecycleEvent(s string) (LifecycleEvent, bool) {
	for _, ev := range LifecycleEvents {
		if string(ev) == s {
			return ev, true
		}
	}
	return "", false
}

// SessionEvent carries what the gateway reports about a session at a
// lifecycle point. StreamPath is empty for connect-level events.
type SessionEvent struct {
	Event      LifecycleEvent
	SessionID  string
	StreamPath string
	Args       map[string]string
	ReceivedAt time.Time
}
