// Package tray renders the notification bell: a StatusNotifier tray icon
// when built with cgo, or waybar JSON lines otherwise.
package tray

import (
	"context"
	"errors"
	"io"
	"os/exec"

	"github.com/example/barshell/internal/logging"
	"github.com/example/barshell/internal/status"
)

var errTrayUnavailable = errors.New("system tray is unavailable without cgo support")

// Controller renders views until ctx is done, the update channel closes or
// the user quits.
type Controller interface {
	Run(ctx context.Context, updates <-chan View) error
}

// Handler receives menu actions. Callbacks run on controller goroutines and
// must hand work to the UI loop themselves. Nil callbacks disable the item.
type Handler struct {
	ToggleDND   func()
	MarkRead    func()
	Clear       func()
	Dismiss     func(id string)
	Media       func(action status.MediaAction)
	OpenNetwork func()
	Quit        func()
}

// Mode selects the controller implementation.
type Mode int

const (
	// ModeAuto prefers the system tray and falls back to waybar output.
	ModeAuto Mode = iota
	// ModeWaybar always writes waybar JSON lines.
	ModeWaybar
)

// New returns the controller for mode. Waybar output goes to w.
func New(mode Mode, h Handler, w io.Writer) Controller {
	if mode == ModeAuto {
		c, err := newSystrayController(h)
		if err == nil {
			return c
		}
		logging.Infof("tray: %v; writing waybar output instead", err)
	}
	return newWaybarController(w)
}

// ExecuteCommand starts argv detached from the shell, as for the network
// settings launcher.
func ExecuteCommand(ctx context.Context, argv []string) error {
	if len(argv) == 0 || argv[0] == "" {
		return errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			logging.Debugf("tray: %s exited: %v", argv[0], err)
		}
	}()
	return nil
}
