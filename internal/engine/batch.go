package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/brettbedarf/tecnicofs/filesystem"
	"github.com/brettbedarf/tecnicofs/internal/queue"
	"github.com/brettbedarf/tecnicofs/internal/util"
	"github.com/brettbedarf/tecnicofs/metrics"
	"github.com/brettbedarf/tecnicofs/requests"
	"github.com/dustin/go-humanize"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
)

// Report summarizes a batch run
type Report struct {
	Elapsed  time.Duration
	Commands int64
	Failed   int64
}

func (r Report) String() string {
	return fmt.Sprintf("TecnicoFS completed in %.4f seconds. %s commands executed, %s failed.",
		r.Elapsed.Seconds(), humanize.Comma(r.Commands), humanize.Comma(r.Failed))
}

// Batch runs a script through the queue and worker pool, then dumps the tree.
type Batch struct {
	cfg        *config.Config
	tree       *filesystem.FileSystem
	dispatcher Dispatcher

	out     io.Writer
	outMu   sync.Mutex
	clock   clock.Clock
	metrics metrics.EngineMetrics

	executed *xsync.Counter
	failed   *xsync.Counter
}

type BatchOption func(*Batch)

// WithOutput sets where result lines go (default stdout)
func WithOutput(w io.Writer) BatchOption {
	return func(b *Batch) { b.out = w }
}

func WithClock(c clock.Clock) BatchOption {
	return func(b *Batch) { b.clock = c }
}

func WithMetrics(m metrics.EngineMetrics) BatchOption {
	return func(b *Batch) { b.metrics = m }
}

// NewBatch builds a fresh tree and the dispatcher for cfg.Strategy
func NewBatch(cfg *config.Config, registry *Registry, opts ...BatchOption) (*Batch, error) {
	tree := filesystem.NewFS(cfg)
	d, err := registry.Dispatcher(string(cfg.Strategy), tree)
	if err != nil {
		return nil, err
	}

	b := &Batch{
		cfg:        cfg,
		tree:       tree,
		dispatcher: d,
		out:        os.Stdout,
		clock:      clock.New(),
		metrics:    metrics.NewNoopEngineMetrics(),
		executed:   xsync.NewCounter(),
		failed:     xsync.NewCounter(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Tree returns the tree the batch operates on
func (b *Batch) Tree() *filesystem.FileSystem {
	return b.tree
}

// Run executes script and, on success, dumps the final tree into dump (if
// non-nil). A parse error or contract violation aborts the run. The elapsed
// time covers command execution only.
func (b *Batch) Run(script io.Reader, dump io.Writer) (Report, error) {
	logger := util.GetLogger("Batch")

	sr := requests.NewScriptReader(script, requests.BatchGrammar)

	var (
		src     queue.Source
		produce func() error
	)
	switch b.cfg.QueueMode {
	case config.QueueBacklog:
		bl := queue.NewBacklog(b.cfg.BacklogSize)
		if err := fillBacklog(sr, bl); err != nil {
			return Report{}, err
		}
		src = bl
	default:
		q := queue.New(b.cfg.QueueSize)
		src = q
		produce = func() error { return b.produce(sr, q) }
	}

	pool := &Pool{
		Size:       b.cfg.Threads,
		Source:     src,
		Dispatcher: b.dispatcher,
		OnResult:   b.record,
		OnFatal: func(err error) {
			logger.Error().Err(err).Msg("Aborting run")
		},
		Metrics: b.metrics,
		Clock:   b.clock,
	}

	logger.Info().
		Int("threads", b.cfg.Threads).
		Str("strategy", string(b.cfg.Strategy)).
		Str("queue", string(b.cfg.QueueMode)).
		Msg("Starting batch")

	start := b.clock.Now()
	var g errgroup.Group
	if produce != nil {
		g.Go(produce)
	}
	g.Go(pool.Run)
	err := g.Wait()
	elapsed := b.clock.Since(start)
	if err != nil {
		return Report{}, err
	}

	b.metrics.SetLiveNodes(b.tree.Len())
	if dump != nil {
		if err := b.tree.Dump(dump); err != nil {
			return Report{}, fmt.Errorf("failed to write dump: %w", err)
		}
	}

	report := Report{Elapsed: elapsed, Commands: b.executed.Value(), Failed: b.failed.Value()}
	logger.Debug().Dur("elapsed", elapsed).Int64("commands", report.Commands).Msg("Batch finished")
	return report, nil
}

// produce feeds the queue and closes it at end of script. On a parse error
// the queue is aborted so workers stop early.
func (b *Batch) produce(sr *requests.ScriptReader, q *queue.Queue) error {
	for {
		cmd, err := sr.Next()
		if errors.Is(err, io.EOF) {
			q.Close()
			return nil
		}
		if err != nil {
			q.Abort()
			return fmt.Errorf("failed to parse script: %w", err)
		}
		if err := q.Enqueue(cmd); err != nil {
			// Aborted by a worker; the pool reports the cause
			return nil
		}
		b.metrics.SetQueueDepth(q.Len())
	}
}

func fillBacklog(sr *requests.ScriptReader, bl *queue.Backlog) error {
	for {
		cmd, err := sr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to parse script: %w", err)
		}
		if err := bl.Enqueue(cmd); err != nil {
			return fmt.Errorf("line %d: %w (capacity %d)", sr.Line(), err, bl.Capacity())
		}
	}
}

func (b *Batch) record(res Result) {
	b.executed.Inc()
	if res.Err != nil {
		b.failed.Inc()
	}
	b.metrics.SetLiveNodes(b.tree.Len())

	b.outMu.Lock()
	defer b.outMu.Unlock()
	fmt.Fprintln(b.out, res)
}
