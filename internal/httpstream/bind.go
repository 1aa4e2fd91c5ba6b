package httpstream

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// BindConfig selects the local address outgoing connections originate from.
// Precedence: SourceIP, then SourceInterface, then AutoBind. All empty means
// default routing.
type BindConfig struct {
	// SourceIP is an explicit local IPv4/IPv6 address.
	SourceIP string
	// SourceInterface is a network interface name (e.g., "wlan0"); its first
	// IPv4 address is used.
	SourceInterface string
	// AutoBind picks the local IPv4 address on the same /24 as the camera.
	// No match means default routing.
	AutoBind bool
	// Fallback tolerates bind failures by retrying with default routing.
	// When false a bind failure fails the connection attempt.
	Fallback bool
	// OnFallback is called when Fallback absorbed a bind failure.
	OnFallback func(err error)
}

// Enabled reports whether any source binding is configured.
func (c BindConfig) Enabled() bool {
	return c.SourceIP != "" || c.SourceInterface != "" || c.AutoBind
}

// Binder dials TCP connections from the configured source address.
type Binder struct {
	cfg         BindConfig
	dialTimeout time.Duration

	// interfaces is swapped in tests.
	interfaces func() ([]netInterface, error)
}

// NewBinder creates a binder. dialTimeout bounds each TCP connect.
func NewBinder(cfg BindConfig, dialTimeout time.Duration) *Binder {
	return &Binder{
		cfg:         cfg,
		dialTimeout: dialTimeout,
		interfaces:  systemInterfaces,
	}
}

// ResolveSource returns the local IP to bind for a connection to targetHost,
// or nil when no binding applies.
func (b *Binder) ResolveSource(targetHost string) (net.IP, error) {
	switch {
	case b.cfg.SourceIP != "":
		ip := net.ParseIP(b.cfg.SourceIP)
		if ip == nil {
			return nil, fmt.Errorf("%w: invalid source IP %q", ErrBind, b.cfg.SourceIP)
		}
		return ip, nil

	case b.cfg.SourceInterface != "":
		ifaces, err := b.interfaces()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to list interfaces: %w", ErrBind, err)
		}
		for _, iface := range ifaces {
			if iface.name != b.cfg.SourceInterface {
				continue
			}
			if !iface.up {
				return nil, fmt.Errorf("%w: interface %s is down", ErrBind, iface.name)
			}
			for _, ip := range iface.addrs {
				if ip4 := ip.To4(); ip4 != nil {
					return ip4, nil
				}
			}
			return nil, fmt.Errorf("%w: interface %s has no IPv4 address", ErrBind, iface.name)
		}
		return nil, fmt.Errorf("%w: interface %s not found", ErrBind, b.cfg.SourceInterface)

	case b.cfg.AutoBind:
		target := net.ParseIP(targetHost).To4()
		if target == nil {
			// Hostnames and IPv6 targets are left to the routing table.
			return nil, nil
		}
		ifaces, err := b.interfaces()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to list interfaces: %w", ErrBind, err)
		}
		return sameSubnet24(target, ifaces), nil
	}

	return nil, nil
}

// DialContext connects to addr from the resolved source address, applying
// the fallback policy on bind failures.
func (b *Binder) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{
		Timeout:   b.dialTimeout,
		KeepAlive: 30 * time.Second,
	}

	local, err := b.ResolveSource(host)
	if err != nil {
		if !b.cfg.Fallback {
			return nil, err
		}
		b.fellBack(err)
		return dialer.DialContext(ctx, network, addr)
	}
	if local == nil {
		return dialer.DialContext(ctx, network, addr)
	}

	dialer.LocalAddr = &net.TCPAddr{IP: local}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err == nil || !isBindErrno(err) {
		return conn, err
	}

	bindErr := fmt.Errorf("%w: local %s: %w", ErrBind, local, err)
	if !b.cfg.Fallback {
		return nil, bindErr
	}
	b.fellBack(bindErr)
	dialer.LocalAddr = nil
	return dialer.DialContext(ctx, network, addr)
}

func (b *Binder) fellBack(err error) {
	if b.cfg.OnFallback != nil {
		b.cfg.OnFallback(err)
		return
	}
	slog.Warn("httpstream: source bind failed, using default routing", "error", err)
}

// NewClient builds the streaming HTTP client.
//
// There is no overall client timeout: a stream body is unbounded. Connect,
// TLS handshake and response headers are each bounded by timeout; body reads
// are bounded by IdleReader.
func NewClient(binder *Binder, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext:           binder.DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		DisableCompression:    true,
		MaxIdleConns:          1,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{Transport: transport}
}

// netInterface is the subset of net.Interface the binder needs.
type netInterface struct {
	name  string
	up    bool
	loop  bool
	addrs []net.IP
}

func systemInterfaces() ([]netInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := make([]netInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		ni := netInterface{
			name: iface.Name,
			up:   iface.Flags&net.FlagUp != 0,
			loop: iface.Flags&net.FlagLoopback != 0,
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok {
				ni.addrs = append(ni.addrs, ipNet.IP)
			}
		}
		out = append(out, ni)
	}
	return out, nil
}

// sameSubnet24 returns the first up, non-loopback IPv4 address sharing the
// target's first three octets.
func sameSubnet24(target net.IP, ifaces []netInterface) net.IP {
	for _, iface := range ifaces {
		if !iface.up || iface.loop {
			continue
		}
		for _, ip := range iface.addrs {
			ip4 := ip.To4()
			if ip4 == nil {
				continue
			}
			if ip4[0] == target[0] && ip4[1] == target[1] && ip4[2] == target[2] {
				return ip4
			}
		}
	}
	return nil
}
