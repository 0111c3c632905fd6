package status

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const dndMode = "do-not-disturb"

type commandRunner interface {
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// DND drives the notification daemon's do-not-disturb mode through makoctl.
type DND struct {
	runner  commandRunner
	command string
}

// NewDND returns a DND controller using command (makoctl compatible).
func NewDND(command string) *DND {
	if command == "" {
		command = "makoctl"
	}
	return &DND{runner: execRunner{}, command: command}
}

// Enabled reports whether the do-not-disturb mode is active.
func (d *DND) Enabled(ctx context.Context) (bool, error) {
	out, err := d.runner.CombinedOutput(ctx, d.command, "mode")
	if err != nil {
		return false, fmt.Errorf("%s mode: %w", d.command, err)
	}
	return strings.Contains(string(out), dndMode), nil
}

// Toggle flips do-not-disturb and returns the resulting state.
func (d *DND) Toggle(ctx context.Context) (bool, error) {
	on, err := d.Enabled(ctx)
	if err != nil {
		return false, err
	}
	flag := "-a"
	if on {
		flag = "-r"
	}
	if out, err := d.runner.CombinedOutput(ctx, d.command, "mode", flag, dndMode); err != nil {
		return on, fmt.Errorf("%s mode %s: %w: %s", d.command, flag, err, strings.TrimSpace(string(out)))
	}
	return d.Enabled(ctx)
}

// Volume is the default sink level.
type Volume struct {
	Level int
	Muted bool
}

const (
	glyphVolumeMuted  = "󰝟"
	glyphVolumeZero   = "󰖁"
	glyphVolumeLow    = "󰕿"
	glyphVolumeMedium = "󰖀"
	glyphVolumeHigh   = "󰕾"
)

// Glyph returns the Nerd Font icon for the level.
func (v Volume) Glyph() string {
	switch {
	case v.Muted:
		return glyphVolumeMuted
	case v.Level > 66:
		return glyphVolumeHigh
	case v.Level > 33:
		return glyphVolumeMedium
	case v.Level > 0:
		return glyphVolumeLow
	default:
		return glyphVolumeZero
	}
}

// VolumeReader queries pamixer.
type VolumeReader struct {
	runner  commandRunner
	command string
}

// NewVolumeReader returns a reader using command (pamixer compatible).
func NewVolumeReader(command string) *VolumeReader {
	if command == "" {
		command = "pamixer"
	}
	return &VolumeReader{runner: execRunner{}, command: command}
}

// Read returns the current level and mute state.
func (r *VolumeReader) Read(ctx context.Context) (Volume, error) {
	out, err := r.runner.CombinedOutput(ctx, r.command, "--get-volume")
	level, convErr := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil && convErr != nil {
		return Volume{}, fmt.Errorf("%s --get-volume: %w", r.command, err)
	}
	if convErr != nil {
		return Volume{}, fmt.Errorf("parse volume %q: %w", strings.TrimSpace(string(out)), convErr)
	}

	// pamixer exits non-zero for "false" and 0 results, so the output decides.
	out, _ = r.runner.CombinedOutput(ctx, r.command, "--get-mute")
	return Volume{Level: level, Muted: strings.TrimSpace(string(out)) == "true"}, nil
}
