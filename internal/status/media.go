package status

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	mprisPrefix    = "org.mpris.MediaPlayer2."
	mprisPath      = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	mprisPlayer    = "org.mpris.MediaPlayer2.Player"
	propertiesGet  = "org.freedesktop.DBus.Properties.Get"
	unknownTitle   = "Unknown"
	playingStatus  = "Playing"
	listNamesCall  = "org.freedesktop.DBus.ListNames"
	maxPlayerNames = 64
)

// ErrNoPlayer is returned by Control when no MPRIS player is on the bus.
var ErrNoPlayer = errors.New("no media player")

// MediaAction is a transport control understood by every MPRIS player.
type MediaAction string

const (
	MediaPlayPause MediaAction = "PlayPause"
	MediaNext      MediaAction = "Next"
	MediaPrevious  MediaAction = "Previous"
)

// ParseMediaAction accepts the CLI spellings play-pause, next and previous.
func ParseMediaAction(s string) (MediaAction, error) {
	switch strings.ToLower(s) {
	case "play-pause", "playpause", "toggle":
		return MediaPlayPause, nil
	case "next":
		return MediaNext, nil
	case "previous", "prev":
		return MediaPrevious, nil
	default:
		return "", fmt.Errorf("unknown media action %q", s)
	}
}

// MediaState describes the active player.
type MediaState struct {
	Player string
	Status string
	Title  string
	Artist string
}

// Playing reports whether the player is currently playing.
func (m MediaState) Playing() bool {
	return m.Status == playingStatus
}

// Label is the short "artist - title" text.
func (m MediaState) Label() string {
	if m.Artist == "" {
		return m.Title
	}
	return m.Artist + " - " + m.Title
}

type mprisBus interface {
	ListNames(ctx context.Context) ([]string, error)
	Property(ctx context.Context, dest, property string) (dbus.Variant, error)
	Call(ctx context.Context, dest, method string) error
}

// Media reads and controls MPRIS players on the session bus.
type Media struct {
	mu   sync.Mutex
	bus  mprisBus
	dial func() (mprisBus, error)
}

// NewMedia returns a reader that connects to the session bus lazily.
func NewMedia() *Media {
	return &Media{dial: dialSessionBus}
}

// Current returns the active player, or nil when none is running. A player
// that is Playing wins over paused ones.
func (m *Media) Current(ctx context.Context) (*MediaState, error) {
	bus, err := m.connect()
	if err != nil {
		return nil, err
	}

	players, err := listPlayers(ctx, bus)
	if err != nil {
		m.reset()
		return nil, err
	}

	var first *MediaState
	for _, name := range players {
		state, err := readPlayer(ctx, bus, name)
		if err != nil {
			continue
		}
		if state.Playing() {
			return state, nil
		}
		if first == nil {
			first = state
		}
	}
	return first, nil
}

// Control sends action to the active player.
func (m *Media) Control(ctx context.Context, action MediaAction) error {
	state, err := m.Current(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		return ErrNoPlayer
	}
	bus, err := m.connect()
	if err != nil {
		return err
	}
	if err := bus.Call(ctx, state.Player, mprisPlayer+"."+string(action)); err != nil {
		return fmt.Errorf("%s %s: %w", state.Player, action, err)
	}
	return nil
}

func (m *Media) connect() (mprisBus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bus != nil {
		return m.bus, nil
	}
	bus, err := m.dial()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	m.bus = bus
	return bus, nil
}

func (m *Media) reset() {
	m.mu.Lock()
	m.bus = nil
	m.mu.Unlock()
}

func listPlayers(ctx context.Context, bus mprisBus) ([]string, error) {
	names, err := bus.ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			players = append(players, name)
		}
	}
	sort.Strings(players)
	if len(players) > maxPlayerNames {
		players = players[:maxPlayerNames]
	}
	return players, nil
}

func readPlayer(ctx context.Context, bus mprisBus, name string) (*MediaState, error) {
	state := &MediaState{Player: name, Title: unknownTitle}

	status, err := bus.Property(ctx, name, "PlaybackStatus")
	if err != nil {
		return nil, err
	}
	if s, ok := status.Value().(string); ok {
		state.Status = s
	}

	if meta, err := bus.Property(ctx, name, "Metadata"); err == nil {
		if values, ok := meta.Value().(map[string]dbus.Variant); ok {
			state.Title, state.Artist = parseMetadata(values)
		}
	}
	return state, nil
}

// parseMetadata extracts the title and the joined artist list.
func parseMetadata(values map[string]dbus.Variant) (string, string) {
	title := unknownTitle
	if v, ok := values["xesam:title"]; ok {
		if s, ok := v.Value().(string); ok && strings.TrimSpace(s) != "" {
			title = strings.TrimSpace(s)
		}
	}

	var artist string
	if v, ok := values["xesam:artist"]; ok {
		switch a := v.Value().(type) {
		case []string:
			artist = strings.Join(a, ", ")
		case string:
			artist = a
		}
	}
	return title, artist
}

type sessionBus struct {
	conn *dbus.Conn
}

func dialSessionBus() (mprisBus, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	return &sessionBus{conn: conn}, nil
}

func (b *sessionBus) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := b.conn.BusObject().CallWithContext(ctx, listNamesCall, 0).Store(&names)
	return names, err
}

func (b *sessionBus) Property(ctx context.Context, dest, property string) (dbus.Variant, error) {
	var v dbus.Variant
	err := b.conn.Object(dest, mprisPath).CallWithContext(ctx, propertiesGet, 0, mprisPlayer, property).Store(&v)
	return v, err
}

func (b *sessionBus) Call(ctx context.Context, dest, method string) error {
	return b.conn.Object(dest, mprisPath).CallWithContext(ctx, method, 0).Err
}
