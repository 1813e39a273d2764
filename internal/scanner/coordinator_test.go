package scanner

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/divergen371/ipscan/internal/network"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"
)

// fakeProberはreachableに含まれるアドレスだけReachableを返す
type fakeProber struct {
	reachable map[network.Address]bool
	delay     time.Duration
	block     bool
	panicOn   network.Address

	inflight    atomic.Int64
	maxInflight atomic.Int64
	calls       atomic.Int64
}

func newFakeProber(reachable ...string) *fakeProber {
	p := &fakeProber{reachable: map[network.Address]bool{}}
	for _, s := range reachable {
		p.reachable[network.MustParseAddress(s)] = true
	}
	return p
}

func (p *fakeProber) Probe(ctx context.Context, addr network.Address) Outcome {
	p.calls.Add(1)
	cur := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		m := p.maxInflight.Load()
		if cur <= m || p.maxInflight.CompareAndSwap(m, cur) {
			break
		}
	}
	if p.panicOn != 0 && addr == p.panicOn {
		panic("boom")
	}
	if p.block {
		<-ctx.Done()
		return Unreachable
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return Unreachable
		}
	}
	if p.reachable[addr] {
		return Reachable
	}
	return Unreachable
}

type recordingReporter struct {
	mu     sync.Mutex
	values []int
	maxes  []int
}

func (r *recordingReporter) ReportProgress(current, maximum int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, current)
	r.maxes = append(r.maxes, maximum)
}

type recordingSink struct {
	calls     int
	occupied  []network.Address
	available []network.Address
}

func (s *recordingSink) PublishResult(occupied, available []network.Address) {
	s.calls++
	s.occupied = occupied
	s.available = available
}

func candidates(t testing.TB, raw string) []network.Address {
	t.Helper()
	addrs, err := network.ExpandPrefixes(raw)
	if err != nil {
		t.Fatalf("ExpandPrefixes(%q): %v", raw, err)
	}
	return addrs
}

func TestCoordinator_SingleHostReachable(t *testing.T) {
	prober := newFakeProber("10.0.0.1")
	reporter := &recordingReporter{}
	sink := &recordingSink{}
	c := NewCoordinator(prober,
		WithProgressReporter(reporter),
		WithResultSink(sink),
		WithLogger(zaptest.NewLogger(t)),
	)

	res, err := c.Run(context.Background(), candidates(t, "10.0.0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := network.Strings(res.Occupied); !slices.Equal(got, []string{"10.0.0.1"}) {
		t.Errorf("want occupied [10.0.0.1], got %v", got)
	}
	if len(res.Available) != 254 {
		t.Fatalf("want 254 available, got %d", len(res.Available))
	}
	if res.Available[0].String() != "10.0.0.2" || res.Available[253].String() != "10.0.0.255" {
		t.Errorf("available out of order: first %s last %s", res.Available[0], res.Available[253])
	}
	if res.Aborted || len(res.Skipped) != 0 {
		t.Errorf("completed scan must not be aborted: %+v", res)
	}

	if len(reporter.values) != 255 {
		t.Fatalf("want 255 progress updates, got %d", len(reporter.values))
	}
	for i, v := range reporter.values {
		if v != i+1 {
			t.Fatalf("progress not monotonic at %d: %d", i, v)
		}
		if reporter.maxes[i] != 255 {
			t.Fatalf("maximum changed during scan: %d", reporter.maxes[i])
		}
	}
	if sink.calls != 1 {
		t.Fatalf("want sink called once, got %d", sink.calls)
	}
	if !slices.Equal(sink.occupied, res.Occupied) || !slices.Equal(sink.available, res.Available) {
		t.Error("sink received different sequences than the result")
	}
}

func TestCoordinator_TwoPrefixesMergedAndSorted(t *testing.T) {
	prober := newFakeProber("10.0.1.7", "10.0.0.200", "10.0.0.9", "10.0.1.10")
	c := NewCoordinator(prober, WithWorkers(17))
	res, err := c.Run(context.Background(), candidates(t, "10.0.1,10.0.0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"10.0.0.9", "10.0.0.200", "10.0.1.7", "10.0.1.10"}
	if got := network.Strings(res.Occupied); !slices.Equal(got, want) {
		t.Errorf("want %v, got %v", want, got)
	}
	if len(res.Available) != 506 {
		t.Errorf("want 506 available, got %d", len(res.Available))
	}
	if !slices.IsSorted(res.Available) {
		t.Error("available is not sorted")
	}
	if res.Total != 510 {
		t.Errorf("want total 510, got %d", res.Total)
	}
}

func TestCoordinator_AllUnreachable(t *testing.T) {
	var last, maximum int
	c := NewCoordinator(newFakeProber(), WithProgressReporter(ProgressFunc(func(cur, max int) {
		last, maximum = cur, max
	})))
	all := candidates(t, "192.168.100")
	res, err := c.Run(context.Background(), all)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Occupied) != 0 {
		t.Errorf("want no occupied, got %v", res.Occupied)
	}
	if !slices.Equal(res.Available, all) {
		t.Error("want every candidate available in order")
	}
	if last != 255 || maximum != 255 {
		t.Errorf("want final progress 255/255, got %d/%d", last, maximum)
	}
}

func TestCoordinator_RespectsWorkerBound(t *testing.T) {
	prober := newFakeProber()
	prober.delay = 2 * time.Millisecond
	c := NewCoordinator(prober, WithWorkers(5))
	if _, err := c.Run(context.Background(), candidates(t, "10.1.1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m := prober.maxInflight.Load(); m > 5 {
		t.Errorf("want at most 5 in-flight probes, saw %d", m)
	}
	if n := prober.calls.Load(); n != 255 {
		t.Errorf("want 255 probes, got %d", n)
	}
}

func TestCoordinator_PanickingProbeIsUnreachable(t *testing.T) {
	prober := newFakeProber("10.0.0.1", "10.0.0.2")
	prober.panicOn = network.MustParseAddress("10.0.0.2")
	c := NewCoordinator(prober, WithLogger(zaptest.NewLogger(t)))
	res, err := c.Run(context.Background(), candidates(t, "10.0.0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := network.Strings(res.Occupied); !slices.Equal(got, []string{"10.0.0.1"}) {
		t.Errorf("want [10.0.0.1], got %v", got)
	}
	if len(res.Available) != 254 {
		t.Errorf("want 254 available, got %d", len(res.Available))
	}
}

func TestCoordinator_NoCandidates(t *testing.T) {
	c := NewCoordinator(newFakeProber())
	if _, err := c.Start(context.Background(), nil); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("want ErrNoCandidates, got %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCoordinator_CancelReturnsPartialResult(t *testing.T) {
	prober := newFakeProber()
	prober.block = true
	sink := &recordingSink{}
	c := NewCoordinator(prober, WithWorkers(2), WithResultSink(sink))

	scan, err := c.Start(context.Background(), candidates(t, "10.0.0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, func() bool { return prober.inflight.Load() == 2 })
	scan.Cancel()

	res, err := scan.Wait()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if !res.Aborted {
		t.Fatal("want aborted result")
	}
	if len(res.Skipped) != 253 {
		t.Errorf("want 253 skipped, got %d", len(res.Skipped))
	}
	if got := len(res.Occupied) + len(res.Available) + len(res.Skipped); got != 255 {
		t.Errorf("partial result must still cover every candidate once, got %d", got)
	}
	if cur, max := scan.Progress(); cur != 2 || max != 255 {
		t.Errorf("want progress 2/255, got %d/%d", cur, max)
	}
	if sink.calls != 0 {
		t.Error("sink must not be invoked for an aborted scan")
	}
}

func TestCoordinator_SerializesAndRestarts(t *testing.T) {
	prober := newFakeProber()
	prober.block = true
	c := NewCoordinator(prober)

	first, err := c.Start(context.Background(), candidates(t, "10.0.0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Start(context.Background(), candidates(t, "10.0.1")); !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("want ErrScanInProgress, got %v", err)
	}
	first.Cancel()
	<-first.Done()

	prober.block = false
	prober.reachable[network.MustParseAddress("10.0.1.5")] = true
	res, err := c.Run(context.Background(), candidates(t, "10.0.1"))
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if got := network.Strings(res.Occupied); !slices.Equal(got, []string{"10.0.1.5"}) {
		t.Errorf("want fresh result [10.0.1.5], got %v", got)
	}
	if len(res.Available) != 254 {
		t.Errorf("results must not accumulate across scans, got %d available", len(res.Available))
	}
}

func TestCoordinator_PartitionProperty(t *testing.T) {
	all := candidates(t, "172.16.0,172.16.1")
	rapid.Check(t, func(rt *rapid.T) {
		picked := rapid.SliceOfDistinct(rapid.SampledFrom(all), func(a network.Address) network.Address { return a }).Draw(rt, "reachable")
		prober := &fakeProber{reachable: map[network.Address]bool{}}
		for _, a := range picked {
			prober.reachable[a] = true
		}
		workers := rapid.Int64Range(1, 128).Draw(rt, "workers")
		reporter := &recordingReporter{}
		c := NewCoordinator(prober, WithWorkers(workers), WithProgressReporter(reporter))
		res, err := c.Run(context.Background(), all)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if len(res.Occupied) != len(picked) {
			rt.Fatalf("want %d occupied, got %d", len(picked), len(res.Occupied))
		}
		union := append(slices.Clone(res.Occupied), res.Available...)
		if !slices.Equal(network.SortAddresses(union), network.SortAddresses(all)) {
			rt.Fatal("occupied and available do not partition the candidates")
		}
		if !slices.IsSorted(res.Occupied) || !slices.IsSorted(res.Available) {
			rt.Fatal("result sequences are not sorted")
		}
		if last := reporter.values[len(reporter.values)-1]; last != len(all) {
			rt.Fatalf("want final progress %d, got %d", len(all), last)
		}
	})
}
