package tray

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// waybarLine is one update of a waybar custom module with return-type json.
type waybarLine struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
}

type waybarController struct {
	w io.Writer
}

func newWaybarController(w io.Writer) *waybarController {
	if w == nil {
		w = os.Stdout
	}
	return &waybarController{w: w}
}

func (c *waybarController) Run(ctx context.Context, updates <-chan View) error {
	out := bufio.NewWriter(c.w)
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-updates:
			if !ok {
				return nil
			}
			if err := enc.Encode(renderWaybar(v)); err != nil {
				return fmt.Errorf("encode waybar line: %w", err)
			}
			if err := out.Flush(); err != nil {
				return fmt.Errorf("write waybar line: %w", err)
			}
		}
	}
}

func renderWaybar(v View) waybarLine {
	return waybarLine{
		Text:    v.Text(),
		Tooltip: v.Tooltip(),
		Class:   v.Class(),
	}
}
