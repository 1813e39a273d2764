package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/divergen371/ipscan/internal/network"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkersは同時に実行するプローブ数の既定値
const DefaultWorkers = 100

var (
	ErrScanInProgress = errors.New("スキャンは既に実行中です")
	ErrNoCandidates   = errors.New("スキャン対象のアドレスがありません")
)

// ProgressReporterは完了したプローブ数を逐次受け取る
type ProgressReporter interface {
	ReportProgress(current, maximum int)
}

// ResultSinkは完了したスキャンの結果を1回だけ受け取る
type ResultSink interface {
	PublishResult(occupied, available []network.Address)
}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(current, maximum int)

func (f ProgressFunc) ReportProgress(current, maximum int) { f(current, maximum) }

// Resultは1回のスキャン結果。OccupiedとAvailableは数値順にソート済み。
type Result struct {
	Occupied  []network.Address
	Available []network.Address
	// Skippedは中断により送信されなかったアドレス
	Skipped   []network.Address
	Total     int
	Aborted   bool
	Elapsed   time.Duration
}

type Option func(*Coordinator)

func WithWorkers(n int64) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithProgressReporter(r ProgressReporter) Option {
	return func(c *Coordinator) { c.reporter = r }
}

func WithResultSink(s ResultSink) Option {
	return func(c *Coordinator) { c.sink = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// Coordinatorは候補アドレスを並列数制限付きでプローブし、使用中/空きに分類する
type Coordinator struct {
	prober   Prober
	workers  int64
	reporter ProgressReporter
	sink     ResultSink
	logger   *zap.Logger
	running  atomic.Bool
}

func NewCoordinator(prober Prober, opts ...Option) *Coordinator {
	c := &Coordinator{
		prober:  prober,
		workers: DefaultWorkers,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scanは実行中のスキャンのハンドル
type Scan struct {
	cancel   context.CancelFunc
	done     chan struct{}
	progress atomic.Int64
	total    int
	result   *Result
	err      error
}

// Waitはスキャン完了まで待ち、結果を返す。中断時はctxのエラーも返す。
func (s *Scan) Wait() (*Result, error) {
	<-s.done
	return s.result, s.err
}

func (s *Scan) Done() <-chan struct{} { return s.done }

// Cancelは新しいプローブの送信を止める。実行中のプローブはタイムアウト内に終わる。
func (s *Scan) Cancel() { s.cancel() }

func (s *Scan) Progress() (current, maximum int) {
	return int(s.progress.Load()), s.total
}

// Runはスキャンを開始して完了まで待つ
func (c *Coordinator) Run(ctx context.Context, candidates []network.Address) (*Result, error) {
	scan, err := c.Start(ctx, candidates)
	if err != nil {
		return nil, err
	}
	return scan.Wait()
}

// Startはスキャンをバックグラウンドで開始する。同じCoordinatorで同時に2つは実行できない。
func (c *Coordinator) Start(ctx context.Context, candidates []network.Address) (*Scan, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Scan{
		cancel: cancel,
		done:   make(chan struct{}),
		total:  len(candidates),
	}
	go func() {
		defer close(s.done)
		s.result, s.err = c.execute(ctx, s, candidates)
		cancel()
		c.running.Store(false)
	}()
	return s, nil
}

func (c *Coordinator) execute(ctx context.Context, s *Scan, candidates []network.Address) (*Result, error) {
	start := time.Now()
	total := len(candidates)
	c.logger.Info("scan started", zap.Int("candidates", total), zap.Int64("workers", c.workers))

	// 送信側は結果チャネルでブロックしないよう候補数分のバッファを持つ
	results := make(chan ProbeResult, total)
	dispatched := make(chan int, 1)
	go func() {
		n := c.dispatch(ctx, candidates, results)
		dispatched <- n
		close(results)
	}()

	// 進捗カウンタと到達済み集合はこのゴルーチンだけが更新する
	var occupied []network.Address
	resolved := make([]network.Address, 0, total)
	for r := range results {
		resolved = append(resolved, r.Addr)
		if r.Outcome == Reachable {
			occupied = append(occupied, r.Addr)
			c.logger.Debug("host reachable", zap.Stringer("addr", r.Addr))
		}
		cur := s.progress.Add(1)
		if c.reporter != nil {
			c.reporter.ReportProgress(int(cur), total)
		}
	}
	n := <-dispatched

	res := &Result{
		Occupied: network.SortAddresses(occupied),
		Total:    total,
		Elapsed:  time.Since(start),
	}
	if n < total || ctx.Err() != nil {
		// 中断時に実行中だったプローブはUnreachableとしてAvailableに含まれる
		res.Aborted = true
		res.Available = network.SortAddresses(network.Difference(resolved, occupied))
		res.Skipped = network.SortAddresses(candidates[n:])
		c.logger.Info("scan aborted",
			zap.Int("resolved", len(resolved)),
			zap.Int("skipped", len(res.Skipped)),
			zap.Duration("elapsed", res.Elapsed))
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		return res, err
	}

	res.Available = network.SortAddresses(network.Difference(candidates, occupied))
	c.logger.Info("scan completed",
		zap.Int("occupied", len(res.Occupied)),
		zap.Int("available", len(res.Available)),
		zap.Duration("elapsed", res.Elapsed))
	if c.sink != nil {
		c.sink.PublishResult(res.Occupied, res.Available)
	}
	return res, nil
}

// dispatchはセマフォで同時実行数を制限しながらプローブを起動し、送信した数を返す
func (c *Coordinator) dispatch(ctx context.Context, candidates []network.Address, results chan<- ProbeResult) int {
	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(c.workers)
	n := 0
	for _, addr := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if ctx.Err() != nil {
			sem.Release(1)
			break
		}
		n++
		wg.Add(1)
		go func(addr network.Address) {
			defer wg.Done()
			defer sem.Release(1)
			results <- ProbeResult{Addr: addr, Outcome: c.probe(ctx, addr)}
		}(addr)
	}
	wg.Wait()
	return n
}

// probeはProberのpanicもUnreachableとして扱う
func (c *Coordinator) probe(ctx context.Context, addr network.Address) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("probe panicked", zap.Stringer("addr", addr), zap.Any("panic", r))
			out = Unreachable
		}
	}()
	return c.prober.Probe(ctx, addr)
}
