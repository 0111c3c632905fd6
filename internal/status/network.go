package status

import (
	"context"
	"fmt"
	"net"
	"slices"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"
)

// Network is the coarse connectivity state shown in the bar.
type Network int

const (
	NetworkDisconnected Network = iota
	NetworkNoInternet
	NetworkOnline
)

func (n Network) String() string {
	switch n {
	case NetworkOnline:
		return "online"
	case NetworkNoInternet:
		return "no-internet"
	default:
		return "disconnected"
	}
}

// Glyph returns the Nerd Font wifi icon for the state.
func (n Network) Glyph() string {
	switch n {
	case NetworkOnline:
		return "󰤨"
	case NetworkNoInternet:
		return "󰤢"
	default:
		return "󰤯"
	}
}

const defaultDialTimeout = time.Second

// NetworkCheck checks for an up link, then for reachability of a well-known
// TCP endpoint.
type NetworkCheck struct {
	target  string
	timeout time.Duration

	interfaces func(context.Context) (psnet.InterfaceStatList, error)
	dial       func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewNetworkCheck dials target (host:port) with a one second timeout.
func NewNetworkCheck(target string) *NetworkCheck {
	if target == "" {
		target = "8.8.8.8:53"
	}
	dialer := &net.Dialer{}
	return &NetworkCheck{
		target:     target,
		timeout:    defaultDialTimeout,
		interfaces: psnet.InterfacesWithContext,
		dial:       dialer.DialContext,
	}
}

// Check returns the current state. The dial is only attempted when some
// interface other than loopback is up.
func (p *NetworkCheck) Check(ctx context.Context) (Network, error) {
	ifaces, err := p.interfaces(ctx)
	if err != nil {
		return NetworkDisconnected, fmt.Errorf("list interfaces: %w", err)
	}
	if !linkUp(ifaces) {
		return NetworkDisconnected, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	conn, err := p.dial(ctx, "tcp", p.target)
	if err != nil {
		return NetworkNoInternet, nil
	}
	_ = conn.Close()
	return NetworkOnline, nil
}

func linkUp(ifaces psnet.InterfaceStatList) bool {
	for _, iface := range ifaces {
		if iface.Name == "lo" {
			continue
		}
		if slices.Contains(iface.Flags, "up") {
			return true
		}
	}
	return false
}
