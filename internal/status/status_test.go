package status

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/sensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResult struct {
	out string
	err error
}

type fakeRunner struct {
	mu      sync.Mutex
	results map[string][]fakeResult
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{results: make(map[string][]fakeResult)}
}

// on queues a result for the command line "name args...". The last queued
// result repeats.
func (f *fakeRunner) on(cmdline, out string, err error) *fakeRunner {
	f.results[cmdline] = append(f.results[cmdline], fakeResult{out: out, err: err})
	return f
}

func (f *fakeRunner) CombinedOutput(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmdline := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, cmdline)
	queue := f.results[cmdline]
	if len(queue) == 0 {
		return nil, errors.New("unexpected command " + cmdline)
	}
	res := queue[0]
	if len(queue) > 1 {
		f.results[cmdline] = queue[1:]
	}
	return []byte(res.out), res.err
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestDNDEnabled(t *testing.T) {
	runner := newFakeRunner().on("makoctl mode", "default\ndo-not-disturb\n", nil)
	d := &DND{runner: runner, command: "makoctl"}

	on, err := d.Enabled(context.Background())

	require.NoError(t, err)
	assert.True(t, on)
}

func TestDNDToggle(t *testing.T) {
	tests := []struct {
		name    string
		current string
		flag    string
		after   string
		want    bool
	}{
		{"enable", "default\n", "-a", "default\ndo-not-disturb\n", true},
		{"disable", "default\ndo-not-disturb\n", "-r", "default\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner().
				on("makoctl mode", tt.current, nil).
				on("makoctl mode", tt.after, nil).
				on("makoctl mode "+tt.flag+" do-not-disturb", "", nil)
			d := &DND{runner: runner, command: "makoctl"}

			on, err := d.Toggle(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.want, on)
			assert.Contains(t, runner.Calls(), "makoctl mode "+tt.flag+" do-not-disturb")
		})
	}
}

func TestDNDErrorReportsOff(t *testing.T) {
	d := &DND{runner: newFakeRunner(), command: "makoctl"}
	on, err := d.Enabled(context.Background())
	assert.Error(t, err)
	assert.False(t, on)
}

func TestVolumeRead(t *testing.T) {
	exit1 := errors.New("exit status 1")
	tests := []struct {
		name   string
		runner *fakeRunner
		want   Volume
		glyph  string
	}{
		{
			name:   "muted",
			runner: newFakeRunner().on("pamixer --get-volume", "50\n", nil).on("pamixer --get-mute", "true\n", nil),
			want:   Volume{Level: 50, Muted: true},
			glyph:  "󰝟",
		},
		{
			name:   "zero_exit_status",
			runner: newFakeRunner().on("pamixer --get-volume", "0\n", exit1).on("pamixer --get-mute", "false\n", exit1),
			want:   Volume{Level: 0},
			glyph:  "󰖁",
		},
		{
			name:   "low",
			runner: newFakeRunner().on("pamixer --get-volume", "33\n", nil).on("pamixer --get-mute", "false\n", exit1),
			want:   Volume{Level: 33},
			glyph:  "󰕿",
		},
		{
			name:   "medium",
			runner: newFakeRunner().on("pamixer --get-volume", "66\n", nil).on("pamixer --get-mute", "false\n", exit1),
			want:   Volume{Level: 66},
			glyph:  "󰖀",
		},
		{
			name:   "high",
			runner: newFakeRunner().on("pamixer --get-volume", "67\n", nil).on("pamixer --get-mute", "false\n", exit1),
			want:   Volume{Level: 67},
			glyph:  "󰕾",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &VolumeReader{runner: tt.runner, command: "pamixer"}

			v, err := r.Read(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
			assert.Equal(t, tt.glyph, v.Glyph())
		})
	}
}

func TestVolumeReadFailure(t *testing.T) {
	r := &VolumeReader{runner: newFakeRunner().on("pamixer --get-volume", "Connection failure\n", errors.New("exit status 1")), command: "pamixer"}

	_, err := r.Read(context.Background())
	assert.Error(t, err)

	snap := Snapshot{}
	assert.Equal(t, "󰕾", snap.VolumeGlyph())
}

type stubConn struct{ net.Conn }

func (stubConn) Close() error { return nil }

func interfacesOf(list psnet.InterfaceStatList, err error) func(context.Context) (psnet.InterfaceStatList, error) {
	return func(context.Context) (psnet.InterfaceStatList, error) { return list, err }
}

func TestNetworkCheck(t *testing.T) {
	up := psnet.InterfaceStatList{
		{Name: "lo", Flags: []string{"up", "loopback"}},
		{Name: "wlan0", Flags: []string{"up", "broadcast", "multicast"}},
	}
	loopbackOnly := psnet.InterfaceStatList{
		{Name: "lo", Flags: []string{"up", "loopback"}},
		{Name: "eth0", Flags: []string{"broadcast"}},
	}
	dialOK := func(context.Context, string, string) (net.Conn, error) { return stubConn{}, nil }
	dialFail := func(context.Context, string, string) (net.Conn, error) { return nil, errors.New("timeout") }

	tests := []struct {
		name  string
		list  psnet.InterfaceStatList
		dial  func(context.Context, string, string) (net.Conn, error)
		want  Network
		glyph string
	}{
		{"online", up, dialOK, NetworkOnline, "󰤨"},
		{"no_internet", up, dialFail, NetworkNoInternet, "󰤢"},
		{"disconnected", loopbackOnly, dialOK, NetworkDisconnected, "󰤯"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &NetworkCheck{target: "8.8.8.8:53", timeout: time.Second, interfaces: interfacesOf(tt.list, nil), dial: tt.dial}

			got, err := p.Check(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.glyph, got.Glyph())
		})
	}
}

func TestNetworkCheckInterfaceError(t *testing.T) {
	p := &NetworkCheck{interfaces: interfacesOf(nil, errors.New("no /proc")), timeout: time.Second}

	got, err := p.Check(context.Background())

	assert.Error(t, err)
	assert.Equal(t, NetworkDisconnected, got)
	assert.Equal(t, "disconnected", got.String())
}

type fakeBus struct {
	mu     sync.Mutex
	names  []string
	props  map[string]map[string]dbus.Variant
	called []string
}

func (b *fakeBus) ListNames(context.Context) ([]string, error) { return b.names, nil }

func (b *fakeBus) Property(_ context.Context, dest, property string) (dbus.Variant, error) {
	v, ok := b.props[dest][property]
	if !ok {
		return dbus.Variant{}, errors.New("no such property")
	}
	return v, nil
}

func (b *fakeBus) Call(_ context.Context, dest, method string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called = append(b.called, dest+" "+method)
	return nil
}

func player(status, title string, artists ...string) map[string]dbus.Variant {
	meta := map[string]dbus.Variant{"xesam:title": dbus.MakeVariant(title)}
	if len(artists) > 0 {
		meta["xesam:artist"] = dbus.MakeVariant(artists)
	}
	return map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant(status),
		"Metadata":       dbus.MakeVariant(meta),
	}
}

func newFakeMedia(bus *fakeBus) *Media {
	return &Media{dial: func() (mprisBus, error) { return bus, nil }}
}

func TestMediaCurrentPrefersPlaying(t *testing.T) {
	bus := &fakeBus{
		names: []string{"org.freedesktop.DBus", "org.mpris.MediaPlayer2.firefox", "org.mpris.MediaPlayer2.spotify", ":1.5"},
		props: map[string]map[string]dbus.Variant{
			"org.mpris.MediaPlayer2.firefox": player("Paused", "Video"),
			"org.mpris.MediaPlayer2.spotify": player("Playing", "Song", "Band", "Guest"),
		},
	}

	state, err := newFakeMedia(bus).Current(context.Background())

	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "org.mpris.MediaPlayer2.spotify", state.Player)
	assert.True(t, state.Playing())
	assert.Equal(t, "Band, Guest - Song", state.Label())
}

func TestMediaCurrentNoPlayer(t *testing.T) {
	m := newFakeMedia(&fakeBus{names: []string{"org.freedesktop.DBus"}})

	state, err := m.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, state)

	assert.ErrorIs(t, m.Control(context.Background(), MediaNext), ErrNoPlayer)
}

func TestMediaControl(t *testing.T) {
	bus := &fakeBus{
		names: []string{"org.mpris.MediaPlayer2.mpv"},
		props: map[string]map[string]dbus.Variant{"org.mpris.MediaPlayer2.mpv": player("Paused", "clip")},
	}

	require.NoError(t, newFakeMedia(bus).Control(context.Background(), MediaPlayPause))
	assert.Equal(t, []string{"org.mpris.MediaPlayer2.mpv org.mpris.MediaPlayer2.Player.PlayPause"}, bus.called)
}

func TestParseMetadata(t *testing.T) {
	title, artist := parseMetadata(map[string]dbus.Variant{})
	assert.Equal(t, "Unknown", title)
	assert.Empty(t, artist)

	title, artist = parseMetadata(map[string]dbus.Variant{
		"xesam:title":  dbus.MakeVariant("  Track  "),
		"xesam:artist": dbus.MakeVariant("Solo"),
	})
	assert.Equal(t, "Track", title)
	assert.Equal(t, "Solo", artist)
}

func TestParseMediaAction(t *testing.T) {
	for in, want := range map[string]MediaAction{"play-pause": MediaPlayPause, "next": MediaNext, "Previous": MediaPrevious} {
		got, err := ParseMediaAction(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMediaAction("stop")
	assert.Error(t, err)
}

func TestPollerRefreshAndRun(t *testing.T) {
	runner := newFakeRunner().
		on("makoctl mode", "do-not-disturb\n", nil).
		on("pamixer --get-volume", "20\n", nil).
		on("pamixer --get-mute", "false\n", nil).
		on("pw-dump", pipewireDump, nil)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p := &Poller{
		dnd:      &DND{runner: runner, command: "makoctl"},
		volume:   &VolumeReader{runner: runner, command: "pamixer"},
		network:  &NetworkCheck{timeout: time.Second, interfaces: interfacesOf(nil, nil)},
		privacy:  &Privacy{runner: runner, command: "pw-dump"},
		system:   func(context.Context) (System, error) { return System{CPUPercent: 12, MemPercent: 75}, nil },
		interval: 10 * time.Millisecond,
		now:      func() time.Time { return at },
	}

	snap := p.Refresh(context.Background())
	assert.Equal(t, at, snap.At)
	assert.True(t, snap.DND)
	assert.True(t, snap.VolumeOK)
	assert.Equal(t, "󰕿", snap.VolumeGlyph())
	assert.Equal(t, NetworkDisconnected, snap.Network)
	assert.True(t, snap.System.MemoryPressure())
	assert.Equal(t, []string{"Firefox"}, snap.Privacy.Mic)
	assert.Nil(t, snap.Media)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	published := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func(Snapshot) {
			mu.Lock()
			published++
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return published >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

const pipewireDump = `[
  {"id": 30, "type": "PipeWire:Interface:Node", "info": {"props": {"media.class": "Audio/Source", "node.description": "Built-in Microphone"}}},
  {"id": 61, "type": "PipeWire:Interface:Node", "info": {"props": {"media.class": "Stream/Input/Audio", "application.name": "Firefox"}}},
  {"id": 62, "type": "PipeWire:Interface:Node", "info": {"props": {"media.class": "Stream/Input/Audio", "application.name": "Firefox"}}},
  {"id": 63, "type": "PipeWire:Interface:Node", "info": {"props": {"media.class": "Stream/Input/Audio", "application.name": "pavucontrol"}}},
  {"id": 70, "type": "PipeWire:Interface:Link", "info": {"props": {"media.class": "Stream/Input/Video"}}},
  {"id": 71, "type": "PipeWire:Interface:Node", "info": {"props": {"media.class": "Stream/Input/Video", "application.name": "", "node.nick": "OBS", "object.serial": 71}}},
  {"id": 72, "type": "PipeWire:Interface:Node", "info": {"props": {"media.class": "Stream/Input/Video"}}}
]`

func TestParsePipewireDump(t *testing.T) {
	state, err := parsePipewireDump([]byte(pipewireDump))
	require.NoError(t, err)

	assert.Equal(t, []string{"Firefox"}, state.Mic)
	assert.Equal(t, []string{"OBS", "Unknown Application"}, state.Screen)
	assert.True(t, state.Active())
	assert.Equal(t, []string{"\uf50e", "\U000f036c"}, state.Glyphs())

	idle, err := parsePipewireDump([]byte("[]"))
	require.NoError(t, err)
	assert.False(t, idle.Active())
	assert.Empty(t, idle.Glyphs())
}

func TestPrivacyReadFailures(t *testing.T) {
	runner := newFakeRunner().on("pw-dump", "", errors.New("exit status 1"))
	_, err := (&Privacy{runner: runner, command: "pw-dump"}).Read(context.Background())
	assert.ErrorContains(t, err, "pw-dump")

	runner = newFakeRunner().on("pw-dump", "not json", nil)
	_, err = (&Privacy{runner: runner, command: "pw-dump"}).Read(context.Background())
	assert.ErrorContains(t, err, "decode pw-dump")
}

func TestCPUTemperature(t *testing.T) {
	tests := []struct {
		name  string
		temps []sensors.TemperatureStat
		want  float64
		ok    bool
	}{
		{"none", nil, 0, false},
		{"coretemp", []sensors.TemperatureStat{
			{SensorKey: "acpitz", Temperature: 30},
			{SensorKey: "coretemp_package_id_0", Temperature: 55},
			{SensorKey: "coretemp_core_0", Temperature: 53},
		}, 55, true},
		{"k10temp over thinkpad", []sensors.TemperatureStat{
			{SensorKey: "thinkpad_cpu", Temperature: 61},
			{SensorKey: "k10temp_tctl", Temperature: 64},
		}, 64, true},
		{"cpu_thermal without label", []sensors.TemperatureStat{
			{SensorKey: "gpu_thermal", Temperature: 40},
			{SensorKey: "cpu_thermal", Temperature: 47},
		}, 47, true},
		{"first sensor fallback", []sensors.TemperatureStat{
			{SensorKey: "acpitz", Temperature: 33},
			{SensorKey: "nvme_composite", Temperature: 38},
		}, 33, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cpuTemperature(tt.temps)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSystemOverheating(t *testing.T) {
	assert.False(t, System{CPUTemp: 95}.Overheating(), "no reading")
	assert.False(t, System{CPUTemp: 89.9, TempOK: true}.Overheating())
	assert.True(t, System{CPUTemp: 90, TempOK: true}.Overheating())
}
