package controllers

import (
	"context"
	"sync"

	"telegram-library/bot"
	"telegram-library/configs"

	"github.com/rs/zerolog"
)

type Handler func(ctx context.Context, ev bot.Event)

// Pool runs events on a fixed set of workers. Events with the same shard key
// go to the same worker, so one chat is always handled in arrival order.
type Pool struct {
	shards  []chan bot.Event
	handle  Handler
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	log     zerolog.Logger
}

func NewPool(workerCount int, handle Handler) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	shards := make([]chan bot.Event, workerCount)
	for i := range shards {
		shards[i] = make(chan bot.Event, 64)
	}
	return &Pool{shards: shards, handle: handle, log: configs.Logger("pool")}
}

func (p *Pool) Start(ctx context.Context) {
	p.log.Info().Int("worker_count", len(p.shards)).Msg("Starting worker pool")
	for i, ch := range p.shards {
		p.wg.Add(1)
		go p.worker(ctx, i, ch)
	}
}

// Stop closes the queues and waits for queued events to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, ch := range p.shards {
		close(ch)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info().Msg("Worker pool stopped")
}

// Submit queues ev, waiting while its shard is full. It reports false when
// ctx ends first or the pool is stopped.
func (p *Pool) Submit(ctx context.Context, ev bot.Event) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		updatesDroppedTotal.Inc()
		p.log.Warn().Str("kind", ev.Kind()).Msg("Worker pool stopped, update dropped")
		return false
	}

	ch := p.shards[shardFor(ev.ShardKey(), len(p.shards))]
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		updatesDroppedTotal.Inc()
		p.log.Warn().Str("kind", ev.Kind()).Msg("Worker queue full, update dropped")
		return false
	}
}

func shardFor(key int64, n int) int {
	return int(uint64(key) % uint64(n))
}

func (p *Pool) worker(ctx context.Context, id int, jobs <-chan bot.Event) {
	defer p.wg.Done()

	log := p.log.With().Int("worker_id", id).Logger()
	log.Debug().Msg("Worker started")

	for ev := range jobs {
		p.handle(ctx, ev)
	}
	log.Debug().Msg("Worker stopping due to closed queue")
}
