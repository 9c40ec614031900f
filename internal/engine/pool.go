package engine

import (
	"github.com/benbjohnson/clock"
	"github.com/brettbedarf/tecnicofs/internal/queue"
	"github.com/brettbedarf/tecnicofs/internal/util"
	"github.com/brettbedarf/tecnicofs/metrics"
	"golang.org/x/sync/errgroup"
)

// Pool runs a fixed number of workers that drain Source through Dispatcher.
type Pool struct {
	Size       int
	Source     queue.Source
	Dispatcher Dispatcher

	// OnResult receives every result. Called concurrently from workers.
	OnResult func(Result)
	// OnFatal is called once per worker hitting a contract violation, after
	// the source was aborted
	OnFatal func(error)

	Metrics metrics.EngineMetrics
	Clock   clock.Clock
}

// Run starts the workers and waits until all of them have seen the sentinel.
// It returns the first contract violation, if any.
func (p *Pool) Run() error {
	if p.Metrics == nil {
		p.Metrics = metrics.NewNoopEngineMetrics()
	}
	if p.Clock == nil {
		p.Clock = clock.New()
	}

	var g errgroup.Group
	for i := range p.Size {
		g.Go(func() error {
			return p.work(i)
		})
	}
	return g.Wait()
}

func (p *Pool) work(worker int) error {
	logger := util.GetLogger("Pool")
	logger.Trace().Int("worker", worker).Msg("Worker started")

	for {
		cmd := p.Source.Dequeue()
		if cmd.IsSentinel() {
			logger.Trace().Int("worker", worker).Msg("Worker done")
			return nil
		}
		p.Metrics.SetQueueDepth(p.Source.Len())

		start := p.Clock.Now()
		res, err := p.Dispatcher.Dispatch(cmd)
		if err != nil {
			logger.Error().Err(err).Int("worker", worker).Uint64("seq", cmd.Seq).Msg("Invalid command reached a worker")
			p.Metrics.RecordMalformed(metrics.SourceBatch)
			p.Source.Abort()
			if p.OnFatal != nil {
				p.OnFatal(err)
			}
			return err
		}
		p.Metrics.RecordCommand(metrics.SourceBatch, cmd.Op, p.Clock.Since(start), res.Err)

		logger.Trace().Int("worker", worker).Uint64("seq", cmd.Seq).Str("result", res.String()).Msg("Command done")
		if p.OnResult != nil {
			p.OnResult(res)
		}
	}
}
