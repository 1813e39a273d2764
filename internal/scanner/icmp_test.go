package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/divergen371/ipscan/internal/network"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/icmp"
)

// canListenはICMPソケットを開けない環境でテストをスキップする
func canListen(t *testing.T, privileged bool) {
	t.Helper()
	netw := "udp4"
	if privileged {
		netw = "ip4:icmp"
	}
	conn, err := icmp.ListenPacket(netw, "0.0.0.0")
	if err != nil {
		t.Skipf("ICMPソケットを開けないためスキップします: %v", err)
	}
	conn.Close()
}

func TestProbe_UnresponsiveIsUnreachable(t *testing.T) {
	for _, privileged := range []bool{false, true} {
		p := NewICMPProber(ICMPConfig{
			Timeout:    100 * time.Millisecond,
			Privileged: privileged,
			Logger:     zaptest.NewLogger(t),
		})
		// TEST-NET-1 is never routed
		if got := p.Probe(context.Background(), network.MustParseAddress("192.0.2.1")); got != Unreachable {
			t.Errorf("privileged=%v: want unreachable, got %s", privileged, got)
		}
	}
}

func TestProbe_CancelledContext(t *testing.T) {
	p := NewICMPProber(ICMPConfig{Timeout: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if got := p.Probe(ctx, network.MustParseAddress("127.0.0.1")); got != Unreachable {
		t.Errorf("want unreachable, got %s", got)
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled probe must return promptly")
	}
}

func TestProbe_Loopback(t *testing.T) {
	canListen(t, false)
	p := NewICMPProber(ICMPConfig{Timeout: time.Second, Logger: zaptest.NewLogger(t)})
	if got := p.Probe(context.Background(), network.MustParseAddress("127.0.0.1")); got != Reachable {
		t.Errorf("localhost should be reachable, got %s", got)
	}
}

func TestNewICMPProber_Defaults(t *testing.T) {
	p := NewICMPProber(ICMPConfig{})
	if p.timeout != DefaultProbeTimeout {
		t.Errorf("want default timeout %s, got %s", DefaultProbeTimeout, p.timeout)
	}
	if p.logger == nil {
		t.Error("want no-op logger")
	}
}
