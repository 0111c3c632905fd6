package shell

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/barshell/internal/config"
	"github.com/example/barshell/internal/notify"
	"github.com/example/barshell/internal/status"
	"github.com/example/barshell/internal/tray"
)

type monitorFunc func(ctx context.Context) error

func (f monitorFunc) Run(ctx context.Context) error { return f(ctx) }

type fakePoller struct {
	snap status.Snapshot
}

func (p *fakePoller) Run(ctx context.Context, publish func(status.Snapshot)) error {
	publish(p.snap)
	<-ctx.Done()
	return nil
}

func (p *fakePoller) Refresh(context.Context) status.Snapshot { return p.snap }
func (p *fakePoller) DND() *status.DND                        { return nil }
func (p *fakePoller) Media() *status.Media                    { return nil }

type fakeController struct {
	mu      sync.Mutex
	handler tray.Handler
	views   []tray.View
}

func (c *fakeController) Run(ctx context.Context, updates <-chan tray.View) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-updates:
			if !ok {
				return nil
			}
			c.mu.Lock()
			c.views = append(c.views, v)
			c.mu.Unlock()
		}
	}
}

func (c *fakeController) last() (tray.View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.views) == 0 {
		return tray.View{}, false
	}
	return c.views[len(c.views)-1], true
}

func (c *fakeController) Handler() tray.Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler
}

func newTestShell(t *testing.T, monitor func(s *Shell) monitorRunner) (*Shell, *fakeController) {
	t.Helper()
	s := New(Options{Config: config.Default()})
	ctrl := &fakeController{}
	s.newController = func(h tray.Handler) tray.Controller {
		ctrl.mu.Lock()
		ctrl.handler = h
		ctrl.mu.Unlock()
		return ctrl
	}
	s.poller = &fakePoller{snap: status.Snapshot{Network: status.NetworkOnline}}
	s.launch = func(context.Context, []string) error { return nil }
	s.restartDelay = 0
	if monitor != nil {
		s.monitor = monitor(s)
	}
	return s, ctrl
}

func startShell(t *testing.T, s *Shell) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestShellPublishesNotifications(t *testing.T) {
	s, ctrl := newTestShell(t, func(s *Shell) monitorRunner {
		return monitorFunc(func(ctx context.Context) error {
			s.loop.Post(func() { s.onEvent(notify.Event{AppName: "mail", Summary: "New message", Key: "id:1"}) })
			s.loop.Post(func() { s.onEvent(notify.Event{AppName: "mail", Summary: "Two messages", Key: "id:1"}) })
			s.loop.Post(func() { s.onEvent(notify.Event{AppName: "chat", Summary: "ping"}) })
			<-ctx.Done()
			return ctx.Err()
		})
	})
	cancel, done := startShell(t, s)

	require.Eventually(t, func() bool {
		v, ok := ctrl.last()
		return ok && v.Total == 2 && v.Status.Network == status.NetworkOnline
	}, 2*time.Second, 5*time.Millisecond)

	v, _ := ctrl.last()
	assert.Equal(t, 2, v.Unread)
	assert.Equal(t, "chat", v.Recent[0].AppName)
	assert.Equal(t, "Two messages", v.Recent[1].Summary)
	assert.Equal(t, 1, v.Recent[1].Updates)

	cancel()
	require.NoError(t, <-done)
}

func TestShellHandlerActions(t *testing.T) {
	s, ctrl := newTestShell(t, func(s *Shell) monitorRunner {
		return monitorFunc(func(ctx context.Context) error {
			for _, summary := range []string{"a", "b", "c"} {
				summary := summary
				s.loop.Post(func() { s.onEvent(notify.Event{AppName: "app", Summary: summary}) })
			}
			<-ctx.Done()
			return ctx.Err()
		})
	})
	_, done := startShell(t, s)

	require.Eventually(t, func() bool {
		v, ok := ctrl.last()
		return ok && v.Total == 3
	}, 2*time.Second, 5*time.Millisecond)

	h := ctrl.Handler()
	assert.Nil(t, h.ToggleDND, "no daemon command configured in the fake poller")
	assert.Nil(t, h.Media)

	v, _ := ctrl.last()
	h.Dismiss(v.Recent[0].ID)
	require.Eventually(t, func() bool {
		v, _ := ctrl.last()
		return v.Total == 2
	}, time.Second, 5*time.Millisecond)

	h.MarkRead()
	require.Eventually(t, func() bool {
		v, _ := ctrl.last()
		return v.Total == 2 && v.Unread == 0
	}, time.Second, 5*time.Millisecond)

	h.Clear()
	require.Eventually(t, func() bool {
		v, _ := ctrl.last()
		return v.Total == 0
	}, time.Second, 5*time.Millisecond)

	h.Quit()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("quit did not stop the shell")
	}
}

func TestShellOpenNetworkLaunchesCommand(t *testing.T) {
	s, ctrl := newTestShell(t, nil)
	s.cfg.Status.NetworkCommand = []string{"nm-connection-editor"}
	s.monitor = monitorFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	var launched atomic.Value
	s.launch = func(_ context.Context, argv []string) error {
		launched.Store(argv)
		return nil
	}
	cancel, done := startShell(t, s)

	require.Eventually(t, func() bool {
		_, ok := ctrl.last()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	ctrl.Handler().OpenNetwork()
	assert.Equal(t, []string{"nm-connection-editor"}, launched.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestSuperviseMonitorRestarts(t *testing.T) {
	var runs atomic.Int32
	s, _ := newTestShell(t, func(*Shell) monitorRunner {
		return monitorFunc(func(ctx context.Context) error {
			runs.Add(1)
			return notify.ErrMonitorExited
		})
	})
	s.restartDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.superviseMonitor(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestSuperviseMonitorGivesUp(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		delay time.Duration
	}{
		{"unavailable", errors.Join(notify.ErrMonitorUnavailable, errors.New("dbus-monitor not found")), time.Millisecond},
		{"restarts disabled", notify.ErrMonitorExited, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var runs atomic.Int32
			s, _ := newTestShell(t, func(*Shell) monitorRunner {
				return monitorFunc(func(context.Context) error {
					runs.Add(1)
					return tt.err
				})
			})
			s.restartDelay = tt.delay

			assert.NoError(t, s.superviseMonitor(context.Background()))
			assert.Equal(t, int32(1), runs.Load())
		})
	}
}

func TestNewUsesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.HistoryLimit = 3
	delay := 7
	cfg.Notifications.RestartDelaySeconds = &delay

	s := New(Options{Config: cfg, Mode: tray.ModeWaybar})

	assert.Equal(t, 7*time.Second, s.restartDelay)
	for i := 0; i < 5; i++ {
		s.inbox.Add(notify.Event{Summary: "x"})
	}
	assert.Equal(t, 3, s.Inbox().Len())
}
