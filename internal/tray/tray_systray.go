//go:build cgo
// +build cgo

package tray

import (
	"context"
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/example/barshell/internal/logging"
	"github.com/example/barshell/internal/status"
)

const menuIconSize = 16

type systrayController struct {
	handler Handler

	mu       sync.Mutex
	slotIDs  []string
	iconKey  string
	header   *systray.MenuItem
	slots    []*systray.MenuItem
	markRead *systray.MenuItem
	clear    *systray.MenuItem
	dnd      *systray.MenuItem
	network  *systray.MenuItem
	media    *systray.MenuItem
	next     *systray.MenuItem
	previous *systray.MenuItem
}

func newSystrayController(h Handler) (Controller, error) {
	return &systrayController{handler: h, slotIDs: make([]string, MaxRecent)}, nil
}

func (c *systrayController) Run(ctx context.Context, updates <-chan View) error {
	done := make(chan struct{})

	go systray.Run(func() {
		systray.SetIcon(renderIcon(0, false))
		systray.SetTooltip("barshell")
		c.build(ctx)

		quit := systray.AddMenuItem("Quit", "Stop barshell")
		go func() {
			select {
			case <-ctx.Done():
			case <-quit.ClickedCh:
				if c.handler.Quit != nil {
					c.handler.Quit()
				}
			}
			systray.Quit()
		}()

		go c.listen(ctx, updates)
	}, func() {
		close(done)
	})

	select {
	case <-ctx.Done():
		systray.Quit()
		<-done
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (c *systrayController) build(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.header = systray.AddMenuItem("No notifications", "")
	c.header.Disable()
	for i := 0; i < MaxRecent; i++ {
		i := i
		slot := systray.AddMenuItem("", "Click to dismiss")
		slot.Hide()
		c.slots = append(c.slots, slot)
		go c.onClick(ctx, slot.ClickedCh, func() { c.dismissSlot(i) })
	}

	systray.AddSeparator()
	c.markRead = c.actionItem(ctx, "Mark all read", "Reset the unread counter", c.handler.MarkRead)
	c.clear = c.actionItem(ctx, "Clear all", "Remove every notification", c.handler.Clear)
	c.dnd = c.actionItem(ctx, "Do not disturb", "Toggle the notification daemon's do-not-disturb mode", c.handler.ToggleDND)

	systray.AddSeparator()
	c.network = c.actionItem(ctx, "Network", "Open network settings", c.handler.OpenNetwork)
	c.media = c.actionItem(ctx, "No media", "Play or pause", c.mediaAction(status.MediaPlayPause))
	c.media.Disable()
	c.previous = c.subItem(ctx, c.media, "Previous", c.mediaAction(status.MediaPrevious))
	c.next = c.subItem(ctx, c.media, "Next", c.mediaAction(status.MediaNext))
	systray.AddSeparator()
}

func (c *systrayController) actionItem(ctx context.Context, title, tooltip string, fn func()) *systray.MenuItem {
	mi := systray.AddMenuItem(title, tooltip)
	if fn == nil {
		mi.Disable()
	}
	go c.onClick(ctx, mi.ClickedCh, fn)
	return mi
}

func (c *systrayController) subItem(ctx context.Context, parent *systray.MenuItem, title string, fn func()) *systray.MenuItem {
	mi := parent.AddSubMenuItem(title, "")
	if fn == nil {
		mi.Disable()
	}
	go c.onClick(ctx, mi.ClickedCh, fn)
	return mi
}

func (c *systrayController) mediaAction(action status.MediaAction) func() {
	if c.handler.Media == nil {
		return nil
	}
	return func() { c.handler.Media(action) }
}

func (c *systrayController) onClick(ctx context.Context, ch <-chan struct{}, fn func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if fn != nil {
				fn()
			}
		}
	}
}

func (c *systrayController) dismissSlot(i int) {
	c.mu.Lock()
	id := c.slotIDs[i]
	c.mu.Unlock()
	if id != "" && c.handler.Dismiss != nil {
		c.handler.Dismiss(id)
	}
}

func (c *systrayController) listen(ctx context.Context, updates <-chan View) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-updates:
			if !ok {
				systray.Quit()
				return
			}
			c.render(v)
		}
	}
}

func (c *systrayController) render(v View) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key := fmt.Sprintf("%s/%t", badgeLabel(v.Unread), v.DND); key != c.iconKey {
		c.iconKey = key
		systray.SetIcon(renderIcon(v.Unread, v.DND))
	}
	systray.SetTooltip(v.Tooltip())

	if v.Total == 0 {
		c.header.SetTitle("No notifications")
	} else {
		c.header.SetTitle(fmt.Sprintf("Notifications (%d, %d unread)", v.Total, v.Unread))
	}
	for i, slot := range c.slots {
		if i >= len(v.Recent) {
			c.slotIDs[i] = ""
			slot.Hide()
			continue
		}
		e := v.Recent[i]
		c.slotIDs[i] = e.ID
		slot.SetTitle(v.EntryLabel(e))
		slot.SetTooltip(logging.Preview(e.Body, 200))
		slot.SetIcon(entryIcon(e.Pixbuf, menuIconSize))
		slot.Show()
	}

	if v.DND {
		c.dnd.Check()
	} else {
		c.dnd.Uncheck()
	}
	c.network.SetTitle(fmt.Sprintf("%s Network: %s", v.Status.Network.Glyph(), v.Status.Network))

	if m := v.Status.Media; m != nil {
		glyph := "▶"
		if m.Playing() {
			glyph = "⏸"
		}
		c.media.SetTitle(glyph + " " + logging.Preview(m.Label(), 50))
		if c.handler.Media != nil {
			c.media.Enable()
		}
	} else {
		c.media.SetTitle("No media")
		c.media.Disable()
	}
}
