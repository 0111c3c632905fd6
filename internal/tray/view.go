package tray

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/example/barshell/internal/inbox"
	"github.com/example/barshell/internal/logging"
	"github.com/example/barshell/internal/status"
)

// MaxRecent is the number of notifications listed in the menu and tooltip.
const MaxRecent = 10

const (
	glyphBell       = "󰂚"
	glyphBellUnread = "󱅫"
	glyphBellDND    = "󰂛"

	glyphTemperature = "\uf2cb"
)

// View is everything a controller renders. Build it with NewView.
type View struct {
	Unread int
	DND    bool
	Status status.Snapshot
	Recent []inbox.Entry
	// Total is the inbox length, which may exceed len(Recent).
	Total int

	clockFormat string
	digest      string
}

// NewView assembles a view from the inbox and the latest status snapshot.
func NewView(box *inbox.Inbox, snap status.Snapshot, clockFormat string) View {
	entries := box.Snapshot()
	total := len(entries)
	if len(entries) > MaxRecent {
		entries = entries[:MaxRecent]
	}
	if clockFormat == "" {
		clockFormat = "15:04"
	}
	v := View{
		Unread:      box.Unread(),
		DND:         snap.DND,
		Status:      snap,
		Recent:      entries,
		Total:       total,
		clockFormat: clockFormat,
	}
	v.digest = digestView(v)
	return v
}

// Digest identifies the rendered content of the view.
func (v View) Digest() string {
	if v.digest == "" {
		return digestView(v)
	}
	return v.digest
}

// BellGlyph is the notification icon: unread wins over do-not-disturb.
func (v View) BellGlyph() string {
	switch {
	case v.Unread > 0:
		return glyphBellUnread
	case v.DND:
		return glyphBellDND
	default:
		return glyphBell
	}
}

// Text is the compact bar label: capture indicators, an overheating CPU,
// network, volume, bell and unread count.
func (v View) Text() string {
	parts := v.Status.Privacy.Glyphs()
	if sys := v.Status.System; sys.Overheating() {
		parts = append(parts, fmt.Sprintf("%s %.0f°C", glyphTemperature, sys.CPUTemp))
	}
	parts = append(parts, v.Status.Network.Glyph(), v.Status.VolumeGlyph(), v.BellGlyph())
	if v.Unread > 0 {
		parts = append(parts, fmt.Sprint(v.Unread))
	}
	return strings.Join(parts, " ")
}

// Class is the CSS class waybar applies to the module.
func (v View) Class() string {
	switch {
	case v.Unread > 0:
		return "unread"
	case v.DND:
		return "dnd"
	case v.Total == 0:
		return "empty"
	default:
		return "read"
	}
}

// EntryLabel is the one-line description of a notification.
func (v View) EntryLabel(e inbox.Entry) string {
	label := e.AppName
	if e.Summary != "" {
		label += ": " + e.Summary
	}
	return e.Updated.Format(v.clockFormat) + " " + logging.Preview(label, 60)
}

// Tooltip lists the recent notifications followed by the status readouts.
func (v View) Tooltip() string {
	var b strings.Builder
	if v.Total == 0 {
		b.WriteString("No notifications")
	} else {
		fmt.Fprintf(&b, "%d notifications, %d unread", v.Total, v.Unread)
		for _, e := range v.Recent {
			b.WriteString("\n")
			b.WriteString(v.EntryLabel(e))
		}
	}
	if v.DND {
		b.WriteString("\nDo not disturb")
	}

	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Network: %s\n", v.Status.Network)
	if v.Status.VolumeOK {
		mute := ""
		if v.Status.Volume.Muted {
			mute = " (muted)"
		}
		fmt.Fprintf(&b, "Volume: %d%%%s\n", v.Status.Volume.Level, mute)
	}
	sys := v.Status.System
	fmt.Fprintf(&b, "CPU: %.0f%%  Memory: %.0f%%", sys.CPUPercent, sys.MemPercent)
	if sys.TempOK {
		fmt.Fprintf(&b, "  Temperature: %.0f°C", sys.CPUTemp)
	}
	if pv := v.Status.Privacy; pv.Active() {
		if len(pv.Mic) > 0 {
			fmt.Fprintf(&b, "\nMicrophone: %s", strings.Join(pv.Mic, ", "))
		}
		if len(pv.Screen) > 0 {
			fmt.Fprintf(&b, "\nScreen sharing: %s", strings.Join(pv.Screen, ", "))
		}
	}
	if m := v.Status.Media; m != nil {
		fmt.Fprintf(&b, "\n%s: %s", m.Status, m.Label())
	}
	return b.String()
}

type digestEntry struct {
	ID      string
	Updates int
	Summary string
	Body    string
	Updated time.Time
	Image   bool
}

type digestPayload struct {
	Unread  int
	DND     bool
	Total   int
	Text    string
	Media   string
	CPU     int
	Mem     int
	Temp    int
	Privacy status.PrivacyState
	Entries []digestEntry
}

func digestView(v View) string {
	payload := digestPayload{
		Unread:  v.Unread,
		DND:     v.DND,
		Total:   v.Total,
		Text:    v.Text(),
		CPU:     int(v.Status.System.CPUPercent),
		Mem:     int(v.Status.System.MemPercent),
		Temp:    int(v.Status.System.CPUTemp),
		Privacy: v.Status.Privacy,
	}
	if m := v.Status.Media; m != nil {
		payload.Media = m.Status + "|" + m.Label()
	}
	for _, e := range v.Recent {
		payload.Entries = append(payload.Entries, digestEntry{
			ID:      e.ID,
			Updates: e.Updates,
			Summary: e.Summary,
			Body:    e.Body,
			Updated: e.Updated,
			Image:   e.Pixbuf != nil,
		})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
