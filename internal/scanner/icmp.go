package scanner

import (
	"context"
	"errors"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/divergen371/ipscan/internal/network"
	"go.uber.org/zap"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// DefaultProbeTimeoutは1アドレスあたりの応答待ち上限
const DefaultProbeTimeout = 500 * time.Millisecond

var echoPayload = []byte("IPSCAN-PROBE")

// Proberは1アドレスに対して1回だけ到達性を確認する。
// 失敗はすべてUnreachableとして返し、エラーは返さない。
type Prober interface {
	Probe(ctx context.Context, addr network.Address) Outcome
}

type ICMPConfig struct {
	Timeout    time.Duration
	// Privilegedがtrueなら raw ソケット (ip4:icmp)、falseなら非特権の udp4 ICMP ソケットを使う
	Privileged bool
	Logger     *zap.Logger
}

// ICMPProberはICMP Echoで到達性を確認する
type ICMPProber struct {
	timeout    time.Duration
	privileged bool
	id         int
	seq        atomic.Uint32
	logger     *zap.Logger
}

func NewICMPProber(cfg ICMPConfig) *ICMPProber {
	p := &ICMPProber{
		timeout:    cfg.Timeout,
		privileged: cfg.Privileged,
		id:         os.Getpid() & 0xFFFF,
		logger:     cfg.Logger,
	}
	if p.timeout <= 0 {
		p.timeout = DefaultProbeTimeout
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

func (p *ICMPProber) network() (string, string) {
	if p.privileged {
		return "ip4:icmp", "0.0.0.0"
	}
	return "udp4", "0.0.0.0"
}

func (p *ICMPProber) destination(addr network.Address) net.Addr {
	ip := net.IP(addr.Addr().AsSlice())
	if p.privileged {
		return &net.IPAddr{IP: ip}
	}
	return &net.UDPAddr{IP: ip}
}

// Probeはエコー要求を1回送り、タイムアウトまで一致するエコー応答を待つ
func (p *ICMPProber) Probe(ctx context.Context, addr network.Address) Outcome {
	ok, err := p.ping(ctx, addr)
	if err != nil {
		p.logger.Debug("probe failed", zap.Stringer("addr", addr), zap.Error(err))
		return Unreachable
	}
	if !ok {
		return Unreachable
	}
	return Reachable
}

func (p *ICMPProber) ping(ctx context.Context, addr network.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	netw, laddr := p.network()
	conn, err := icmp.ListenPacket(netw, laddr)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	seq := int(p.seq.Add(1) & 0xFFFF)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho, Code: 0,
		Body: &icmp.Echo{
			ID: p.id, Seq: seq,
			Data: echoPayload,
		},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return false, err
	}

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return false, err
	}
	// ctxのキャンセルで読み込み待ちを解除する
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	if _, err := conn.WriteTo(wb, p.destination(addr)); err != nil {
		return false, err
	}

	want := echoMatch{
		from:    addr,
		id:      p.id,
		seq:     seq,
		checkID: p.privileged,
	}
	rb := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				return false, nil
			}
			return false, err
		}
		if !want.fromPeer(peer) {
			continue
		}
		if want.matches(rb[:n]) {
			return true, nil
		}
	}
}
