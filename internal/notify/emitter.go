package notify

import (
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/example/barshell/internal/logging"
)

// DefaultMaxTextLength bounds app name, summary and body in runes.
const DefaultMaxTextLength = 1000

// FallbackAppName replaces missing or bus-address app names.
const FallbackAppName = "System"

// builtinIgnored are daemons whose own OSD bubbles would otherwise echo back
// into the inbox.
var builtinIgnored = []string{"audio-feedback", "dunst", "mako", "volume", "brightness"}

// Event is a finished notification ready for the inbox.
type Event struct {
	AppName    string
	Summary    string
	Body       string
	Icon       string
	Timestamp  time.Time
	Pixbuf     *image.NRGBA
	ReplacesID uint32
	// Key identifies the bubble this event replaces, empty for a new one.
	Key     string
	Hints   map[string]string
	Actions []string
}

// Emitter filters and normalises frames into events.
type Emitter struct {
	ignored map[string]struct{}
	maxText int
	now     func() time.Time
}

// NewEmitter builds an emitter. ignoreApps extends the built-in denylist.
func NewEmitter(ignoreApps []string, maxText int) *Emitter {
	if maxText <= 0 {
		maxText = DefaultMaxTextLength
	}
	ignored := make(map[string]struct{}, len(builtinIgnored)+len(ignoreApps))
	for _, name := range builtinIgnored {
		ignored[name] = struct{}{}
	}
	for _, name := range ignoreApps {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			ignored[name] = struct{}{}
		}
	}
	return &Emitter{ignored: ignored, maxText: maxText, now: time.Now}
}

// Ignored reports whether notifications from appName are dropped.
func (e *Emitter) Ignored(appName string) bool {
	_, ok := e.ignored[strings.ToLower(appName)]
	return ok
}

// Emit converts a frame. The boolean is false when the frame is filtered.
func (e *Emitter) Emit(f *Frame) (Event, bool) {
	if f == nil || e.Ignored(f.AppName) {
		return Event{}, false
	}

	appName := f.AppName
	if strings.TrimSpace(appName) == "" || strings.HasPrefix(appName, ":") {
		appName = FallbackAppName
	}

	ev := Event{
		AppName:    truncateRunes(appName, e.maxText),
		Summary:    truncateRunes(f.Summary, e.maxText),
		Body:       truncateRunes(f.Body, e.maxText),
		Icon:       f.Icon,
		Timestamp:  e.now(),
		ReplacesID: f.ReplacesID,
		Key:        DedupKey(f),
		Hints:      f.Hints,
		Actions:    f.Actions,
	}

	if f.ImageErr != nil {
		logging.Warnf("notification from %s: image dropped: %v", ev.AppName, f.ImageErr)
	}
	if f.Image != nil {
		pix, err := f.Image.NRGBA()
		if err != nil {
			logging.Warnf("notification from %s: image unusable: %v", ev.AppName, err)
		} else {
			ev.Pixbuf = pix
			logging.Debugf("notification from %s: image %dx%d %s", ev.AppName, f.Image.Width, f.Image.Height, logging.DescribeBytes(f.Image.Pixels))
		}
	}
	return ev, true
}

// DedupKey returns the inbox key a frame updates: the synchronous hint tag
// first, then a non-zero replaces_id, otherwise "".
func DedupKey(f *Frame) string {
	if tag := f.Hints[SyncHint]; tag != "" {
		return "sync:" + tag
	}
	if f.ReplacesID > 0 {
		return "id:" + strconv.FormatUint(uint64(f.ReplacesID), 10)
	}
	return ""
}

func truncateRunes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
