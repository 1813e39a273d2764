package scanner

import (
	"context"

	"github.com/divergen371/ipscan/internal/network"
)

// Outcomeは1回のプローブ結果。不明という値は存在しない。
type Outcome uint8

const (
	Unreachable Outcome = iota
	Reachable
)

func (o Outcome) String() string {
	if o == Reachable {
		return "reachable"
	}
	return "unreachable"
}

// ProbeResult pairs an address with the outcome of its probe.
type ProbeResult struct {
	Addr    network.Address
	Outcome Outcome
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, addr network.Address) Outcome

func (f ProberFunc) Probe(ctx context.Context, addr network.Address) Outcome { return f(ctx, addr) }
