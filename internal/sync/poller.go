// Package sync keeps the inbox listing current by fetching it on a fixed
// period and on demand.
package sync

import (
	"context"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/nhle/meltmail/internal/classify"
	"github.com/nhle/meltmail/internal/model"
	"github.com/nhle/meltmail/internal/schedule"
)

// State is the polling state.
type State int

const (
	StateIdle State = iota
	StatePolling
)

func (s State) String() string {
	if s == StatePolling {
		return "polling"
	}
	return "idle"
}

// Trigger says what caused a fetch.
type Trigger int

const (
	TriggerManual Trigger = iota
	TriggerScheduled
)

func (t Trigger) String() string {
	if t == TriggerScheduled {
		return "scheduled"
	}
	return "manual"
}

// DefaultInterval is the polling period used when none is given.
const DefaultInterval = 10 * time.Second

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// Fetcher lists the inbox for a bearer token.
type Fetcher interface {
	ListMessages(ctx context.Context, token string) ([]model.MessageSummary, error)
}

// TokenSource supplies the current bearer token.
type TokenSource interface {
	Token() string
}

// Result is the outcome of one fetch. Err is set when the inbox could not
// be read; Messages is then nil and the previous listing still stands.
// Token is the bearer token the fetch used, so a result for a mailbox
// that has since been replaced can be recognised.
type Result struct {
	Seq      uint64
	Trigger  Trigger
	Token    string
	Messages []classify.Classified
	Err      error
	At       time.Time
}

// Poller fetches and classifies the inbox. Every fetch gets a sequence
// number when dispatched and results are delivered in sequence order: a
// result older than one already delivered is dropped, so the most
// recently dispatched fetch always has the final say.
type Poller struct {
	fetcher Fetcher
	tokens  TokenSource
	deliver func(Result)
	now     func() time.Time

	seq      atomic.Uint64
	inflight gosync.WaitGroup

	mu       gosync.Mutex
	state    State
	interval time.Duration
	task     *schedule.Task

	deliverMu gosync.Mutex
	delivered uint64
}

// New creates an idle poller. deliver is called for every fresh result,
// one call at a time, from a background goroutine.
func New(f Fetcher, tokens TokenSource, deliver func(Result)) *Poller {
	return &Poller{
		fetcher: f,
		tokens:  tokens,
		deliver: deliver,
		now:     time.Now,
	}
}

// Enable starts polling every interval. If already polling, the schedule
// is replaced. A non-positive interval selects DefaultInterval.
func (p *Poller) Enable(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	p.mu.Lock()
	old := p.task
	p.task = schedule.Every(interval, func() bool {
		p.dispatch(TriggerScheduled)
		return true
	})
	p.state = StatePolling
	p.interval = interval
	p.mu.Unlock()

	old.Cancel()
}

// Disable stops polling. No scheduled fetch is dispatched after Disable
// returns; fetches already in flight still deliver.
func (p *Poller) Disable() {
	p.mu.Lock()
	task := p.task
	p.task = nil
	p.state = StateIdle
	p.mu.Unlock()

	task.Cancel()
}

// Toggle flips between idle and polling and returns the new state.
func (p *Poller) Toggle(interval time.Duration) State {
	if p.State() == StatePolling {
		p.Disable()
		return StateIdle
	}
	p.Enable(interval)
	return StatePolling
}

// State returns the current polling state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Interval returns the active polling period, or zero when idle.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePolling {
		return 0
	}
	return p.interval
}

// Refresh dispatches a manual fetch and returns its sequence number. The
// polling state is not changed.
func (p *Poller) Refresh() uint64 {
	return p.dispatch(TriggerManual)
}

// Wait blocks until every dispatched fetch has delivered or been dropped.
func (p *Poller) Wait() {
	p.inflight.Wait()
}

// Close stops polling and waits for in-flight fetches.
func (p *Poller) Close() {
	p.Disable()
	p.Wait()
}

func (p *Poller) dispatch(trigger Trigger) uint64 {
	seq := p.seq.Add(1)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.publish(p.fetch(seq, trigger))
	}()
	return seq
}

func (p *Poller) fetch(seq uint64, trigger Trigger) Result {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	res := Result{Seq: seq, Trigger: trigger, Token: p.tokens.Token()}
	summaries, err := p.fetcher.ListMessages(ctx, res.Token)
	res.At = p.now()
	if err != nil {
		res.Err = err
		return res
	}
	res.Messages = classify.All(summaries)
	return res
}

func (p *Poller) publish(res Result) {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	if res.Seq <= p.delivered {
		return
	}
	p.delivered = res.Seq
	if p.deliver != nil {
		p.deliver(res)
	}
}
