// Package status samples the readouts shown next to the notification bell:
// do-not-disturb, volume, network, CPU load and temperature, memory,
// microphone and screen capture, and the media player.
package status

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/barshell/internal/config"
	"github.com/example/barshell/internal/logging"
)

const refreshTimeout = 2 * time.Second

// Snapshot is one round of readouts. Failed readers leave their zero value,
// which renders as the fallback glyph.
type Snapshot struct {
	At     time.Time
	DND    bool
	Volume Volume
	// VolumeOK is false when the level could not be read.
	VolumeOK bool
	Network  Network
	System   System
	Privacy  PrivacyState
	Media    *MediaState
}

// VolumeGlyph returns the volume icon, falling back to the full-volume glyph
// when the level could not be read.
func (s Snapshot) VolumeGlyph() string {
	if !s.VolumeOK {
		return glyphVolumeHigh
	}
	return s.Volume.Glyph()
}

// Poller refreshes a Snapshot on a fixed interval.
type Poller struct {
	dnd      *DND
	volume   *VolumeReader
	network  *NetworkCheck
	privacy  *Privacy
	system   func(context.Context) (System, error)
	media    *Media
	interval time.Duration
	now      func() time.Time
}

// NewPoller builds a poller from the status section of cfg.
func NewPoller(cfg *config.Config) *Poller {
	p := &Poller{
		dnd:      NewDND(cfg.Status.DNDCommand),
		volume:   NewVolumeReader(cfg.Status.VolumeCommand),
		network:  NewNetworkCheck(cfg.Status.ConnectivityTarget),
		privacy:  NewPrivacy(cfg.Status.PrivacyCommand),
		system:   ReadSystem,
		interval: cfg.PollInterval(),
		now:      time.Now,
	}
	if cfg.MediaEnabled() {
		p.media = NewMedia()
	}
	return p
}

// DND exposes the do-not-disturb controller for toggling.
func (p *Poller) DND() *DND { return p.dnd }

// Media exposes the media controller, nil when disabled.
func (p *Poller) Media() *Media { return p.media }

// Refresh samples every reader concurrently. It never fails; reader errors are
// logged at debug level.
func (p *Poller) Refresh(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	snap := Snapshot{At: p.now()}
	var g errgroup.Group

	g.Go(func() error {
		on, err := p.dnd.Enabled(ctx)
		if err != nil {
			logging.Debugf("status: dnd: %v", err)
		}
		snap.DND = on
		return nil
	})
	g.Go(func() error {
		v, err := p.volume.Read(ctx)
		if err != nil {
			logging.Debugf("status: volume: %v", err)
			return nil
		}
		snap.Volume, snap.VolumeOK = v, true
		return nil
	})
	g.Go(func() error {
		n, err := p.network.Check(ctx)
		if err != nil {
			logging.Debugf("status: network: %v", err)
		}
		snap.Network = n
		return nil
	})
	g.Go(func() error {
		pv, err := p.privacy.Read(ctx)
		if err != nil {
			logging.Debugf("status: privacy: %v", err)
		}
		snap.Privacy = pv
		return nil
	})
	g.Go(func() error {
		s, err := p.system(ctx)
		if err != nil {
			logging.Debugf("status: system: %v", err)
		}
		snap.System = s
		return nil
	})
	if p.media != nil {
		g.Go(func() error {
			m, err := p.media.Current(ctx)
			if err != nil {
				logging.Debugf("status: media: %v", err)
			}
			snap.Media = m
			return nil
		})
	}
	_ = g.Wait()
	return snap
}

// Run publishes a snapshot immediately and then every interval until ctx is
// done.
func (p *Poller) Run(ctx context.Context, publish func(Snapshot)) error {
	interval := p.interval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	publish(p.Refresh(ctx))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			publish(p.Refresh(ctx))
		}
	}
}
