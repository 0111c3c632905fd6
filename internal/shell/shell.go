// Package shell wires the notification monitor, the inbox, the status poller
// and the tray controller around a single UI loop.
package shell

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/barshell/internal/config"
	"github.com/example/barshell/internal/inbox"
	"github.com/example/barshell/internal/logging"
	"github.com/example/barshell/internal/notify"
	"github.com/example/barshell/internal/status"
	"github.com/example/barshell/internal/tray"
)

const actionTimeout = 5 * time.Second

type monitorRunner interface {
	Run(ctx context.Context) error
}

type statusSource interface {
	Run(ctx context.Context, publish func(status.Snapshot)) error
	Refresh(ctx context.Context) status.Snapshot
	DND() *status.DND
	Media() *status.Media
}

// Options configure a Shell.
type Options struct {
	Config *config.Config
	Mode   tray.Mode
	// Output receives waybar lines; stdout when nil.
	Output io.Writer
}

// Shell owns the inbox and the latest status snapshot. Both are only mutated
// on the UI loop.
type Shell struct {
	cfg       *config.Config
	loop      *Loop
	inbox     *inbox.Inbox
	publisher *tray.Publisher
	poller    statusSource
	monitor   monitorRunner

	newController func(tray.Handler) tray.Controller
	launch        func(ctx context.Context, argv []string) error
	restartDelay  time.Duration

	status status.Snapshot
}

// New assembles a shell from opts.
func New(opts Options) *Shell {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	n := cfg.Notifications

	s := &Shell{
		cfg:       cfg,
		loop:      NewLoop(),
		inbox:     inbox.New(n.HistoryLimit),
		publisher: tray.NewPublisher(),
		poller:    status.NewPoller(cfg),
		launch:    tray.ExecuteCommand,

		restartDelay: cfg.RestartDelay(),
	}
	s.newController = func(h tray.Handler) tray.Controller {
		return tray.New(opts.Mode, h, opts.Output)
	}

	limits := notify.Limits{MaxImageBytes: n.MaxImageBytes, ThumbnailSize: n.ThumbnailSize}
	emitter := notify.NewEmitter(n.IgnoreApps, n.MaxTextLength)
	s.monitor = notify.NewMonitor(n.MonitorCommand, limits, emitter, s.loop.Post, s.onEvent)
	return s
}

// Inbox exposes the notification history.
func (s *Shell) Inbox() *inbox.Inbox { return s.inbox }

// Run blocks until ctx is done or the user quits from the tray.
func (s *Shell) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	controller := s.newController(s.handler(ctx, cancel))

	g.Go(func() error {
		return s.loop.Run(ctx)
	})
	g.Go(func() error {
		defer cancel()
		err := controller.Run(ctx, s.publisher.Updates())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return s.superviseMonitor(ctx)
	})
	g.Go(func() error {
		return s.poller.Run(ctx, func(snap status.Snapshot) {
			s.loop.Post(func() { s.setStatus(snap) })
		})
	})

	s.loop.Post(s.refresh)
	logging.Infof("shell: running (history limit %d)", s.cfg.Notifications.HistoryLimit)

	err := g.Wait()
	s.publisher.Close()
	logging.Infof("shell: stopped")
	return err
}

// superviseMonitor keeps the trace monitor running. A missing executable is
// reported once and never retried.
func (s *Shell) superviseMonitor(ctx context.Context) error {
	for {
		err := s.monitor.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, notify.ErrMonitorUnavailable) {
			logging.Warnf("shell: %v; notifications disabled", err)
			return nil
		}

		delay := s.restartDelay
		if delay <= 0 {
			logging.Warnf("shell: %v; restarts disabled", err)
			return nil
		}
		logging.Warnf("shell: %v; restarting in %s", err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *Shell) onEvent(ev notify.Event) {
	entry, change := s.inbox.Add(ev)
	logging.Debugf("shell: %s %s from %s: %s", change, entry.ID, entry.AppName, logging.Preview(entry.Summary, 60))
	s.refresh()
}

func (s *Shell) setStatus(snap status.Snapshot) {
	s.status = snap
	s.refresh()
}

// refresh publishes the current state. UI loop only.
func (s *Shell) refresh() {
	s.publisher.Publish(tray.NewView(s.inbox, s.status, s.cfg.Clock.Format))
}

func (s *Shell) handler(ctx context.Context, quit context.CancelFunc) tray.Handler {
	h := tray.Handler{
		MarkRead: func() {
			s.loop.Post(func() {
				s.inbox.MarkRead()
				s.refresh()
			})
		},
		Clear: func() {
			s.loop.Post(func() {
				s.inbox.Clear()
				s.refresh()
			})
		},
		Dismiss: func(id string) {
			s.loop.Post(func() {
				if s.inbox.Dismiss(id) {
					s.refresh()
				}
			})
		},
		OpenNetwork: func() {
			if err := s.launch(ctx, s.cfg.Status.NetworkCommand); err != nil {
				logging.Warnf("shell: open network settings: %v", err)
			}
		},
		Quit: func() {
			logging.Infof("shell: quit requested")
			quit()
		},
	}
	if dnd := s.poller.DND(); dnd != nil {
		h.ToggleDND = func() {
			go s.toggleDND(ctx, dnd)
		}
	}
	if media := s.poller.Media(); media != nil {
		h.Media = func(action status.MediaAction) {
			go s.controlMedia(ctx, media, action)
		}
	}
	return h
}

func (s *Shell) toggleDND(ctx context.Context, dnd *status.DND) {
	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	on, err := dnd.Toggle(ctx)
	if err != nil {
		logging.Warnf("shell: toggle do-not-disturb: %v", err)
		return
	}
	s.loop.Post(func() {
		s.status.DND = on
		s.refresh()
	})
}

func (s *Shell) controlMedia(ctx context.Context, media *status.Media, action status.MediaAction) {
	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	if err := media.Control(ctx, action); err != nil {
		logging.Warnf("shell: media %s: %v", action, err)
		return
	}
	snap := s.poller.Refresh(ctx)
	s.loop.Post(func() { s.setStatus(snap) })
}
