package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/example/barshell/internal/config"
	"github.com/example/barshell/internal/inbox"
	"github.com/example/barshell/internal/logging"
	"github.com/example/barshell/internal/notify"
	"github.com/example/barshell/internal/status"
)

const commandTimeout = 5 * time.Second

type entryRecord struct {
	ID       string    `json:"id"`
	Key      string    `json:"key,omitempty"`
	App      string    `json:"app"`
	Summary  string    `json:"summary"`
	Body     string    `json:"body,omitempty"`
	Icon     string    `json:"icon,omitempty"`
	Actions  []string  `json:"actions,omitempty"`
	Image    string    `json:"image,omitempty"`
	Received time.Time `json:"received"`
	Updates  int       `json:"updates,omitempty"`
}

func newEntryRecord(e inbox.Entry) entryRecord {
	rec := entryRecord{
		ID:       e.ID,
		Key:      e.Key,
		App:      e.AppName,
		Summary:  e.Summary,
		Body:     e.Body,
		Icon:     e.Icon,
		Actions:  e.Actions,
		Received: e.Received,
		Updates:  e.Updates,
	}
	if e.Pixbuf != nil {
		b := e.Pixbuf.Bounds()
		rec.Image = fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
	}
	return rec
}

func newReplayCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Parse a saved dbus-monitor capture",
		Long: `Parse a capture taken with

  dbus-monitor "interface='org.freedesktop.Notifications'"

and print the notifications it contains, as the tray would record them.
Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open capture: %w", err)
				}
				defer f.Close()
				r = f
			}

			n := cfg.Notifications
			box := inbox.New(n.HistoryLimit)
			out := cmd.OutOrStdout()
			limits := notify.Limits{MaxImageBytes: n.MaxImageBytes, ThumbnailSize: n.ThumbnailSize}
			emitter := notify.NewEmitter(n.IgnoreApps, n.MaxTextLength)

			m := notify.NewMonitor(nil, limits, emitter, nil, func(ev notify.Event) {
				entry, change := box.Add(ev)
				if !asJSON {
					fmt.Fprintf(out, "%-7s %s: %s\n", change, entry.AppName, logging.Preview(entry.Summary, 80))
				}
			})
			if err := m.Replay(commandContext(cmd), r); err != nil {
				return err
			}

			if !asJSON {
				fmt.Fprintf(out, "%d notifications\n", box.Len())
				return nil
			}
			records := make([]entryRecord, 0, box.Len())
			for _, e := range box.Snapshot() {
				records = append(records, newEntryRecord(e))
			}
			return writeJSON(out, records)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the resulting history as JSON, newest first")
	return cmd
}

type statusRecord struct {
	DND     bool               `json:"dnd"`
	Volume  *int               `json:"volume,omitempty"`
	Muted   bool               `json:"muted,omitempty"`
	Network string             `json:"network"`
	CPU     float64            `json:"cpu_percent"`
	Memory  float64            `json:"memory_percent"`
	Swap    float64            `json:"swap_percent"`
	CPUTemp *float64           `json:"cpu_temp,omitempty"`
	Mic     []string           `json:"microphone,omitempty"`
	Screen  []string           `json:"screen_share,omitempty"`
	Media   *status.MediaState `json:"media,omitempty"`
}

func newStatusRecord(snap status.Snapshot) statusRecord {
	rec := statusRecord{
		DND:     snap.DND,
		Network: snap.Network.String(),
		CPU:     snap.System.CPUPercent,
		Memory:  snap.System.MemPercent,
		Swap:    snap.System.SwapPercent,
		Mic:     snap.Privacy.Mic,
		Screen:  snap.Privacy.Screen,
		Media:   snap.Media,
	}
	if snap.VolumeOK {
		level := snap.Volume.Level
		rec.Volume = &level
		rec.Muted = snap.Volume.Muted
	}
	if snap.System.TempOK {
		temp := snap.System.CPUTemp
		rec.CPUTemp = &temp
	}
	return rec
}

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print one round of status readouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			snap := status.NewPoller(cfg).Refresh(commandContext(cmd))
			out := cmd.OutOrStdout()

			if asJSON {
				return writeJSON(out, newStatusRecord(snap))
			}

			writeStatus(out, snap)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the readouts as JSON")
	return cmd
}

func writeStatus(w io.Writer, snap status.Snapshot) {
	fmt.Fprintf(w, "dnd:     %s\n", onOff(snap.DND))
	if snap.VolumeOK {
		muted := ""
		if snap.Volume.Muted {
			muted = " (muted)"
		}
		fmt.Fprintf(w, "volume:  %s %d%%%s\n", snap.VolumeGlyph(), snap.Volume.Level, muted)
	} else {
		fmt.Fprintln(w, "volume:  unavailable")
	}
	fmt.Fprintf(w, "network: %s %s\n", snap.Network.Glyph(), snap.Network)
	fmt.Fprintf(w, "cpu:     %.0f%%\n", snap.System.CPUPercent)
	fmt.Fprintf(w, "memory:  %.0f%%\n", snap.System.MemPercent)
	if sys := snap.System; sys.TempOK {
		hot := ""
		if sys.Overheating() {
			hot = " (hot)"
		}
		fmt.Fprintf(w, "temp:    %.0f°C%s\n", sys.CPUTemp, hot)
	}
	if len(snap.Privacy.Mic) > 0 {
		fmt.Fprintf(w, "mic:     %s\n", strings.Join(snap.Privacy.Mic, ", "))
	}
	if len(snap.Privacy.Screen) > 0 {
		fmt.Fprintf(w, "screen:  %s\n", strings.Join(snap.Privacy.Screen, ", "))
	}
	if m := snap.Media; m != nil {
		fmt.Fprintf(w, "media:   %s: %s\n", m.Status, m.Label())
	}
}

func newDNDCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "dnd [toggle]",
		Short:     "Show or toggle do-not-disturb",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, cancel := contextWithTimeout(cmd, commandTimeout)
			defer cancel()

			dnd := status.NewDND(cfg.Status.DNDCommand)
			var on bool
			if len(args) == 1 {
				on, err = dnd.Toggle(ctx)
			} else {
				on, err = dnd.Enabled(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "do-not-disturb: %s\n", onOff(on))
			return nil
		},
	}
}

func newMediaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "media [play-pause|next|previous]",
		Short:     "Show or control the active media player",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"play-pause", "next", "previous"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.MediaEnabled() {
				return errors.New("media readout is disabled in the configuration")
			}
			ctx, cancel := contextWithTimeout(cmd, commandTimeout)
			defer cancel()

			media := status.NewMedia()
			if len(args) == 1 {
				action, err := status.ParseMediaAction(args[0])
				if err != nil {
					return err
				}
				return media.Control(ctx, action)
			}

			state, err := media.Current(ctx)
			if err != nil {
				return err
			}
			if state == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no player")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", state.Player, state.Status, state.Label())
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.Path()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := config.Save(config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path, err := config.Path()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		initCmd,
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				raw, err := toml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("marshal config: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(raw)
				return err
			},
		},
	)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
