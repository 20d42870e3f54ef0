// Package exchange moves particles between ranks that each own part of the
// domain, and hands out globally unique particle ids.
package exchange

import (
	"context"
	"errors"
	"sync"
)

var ErrSizeMismatch = errors.New("exchange: group size mismatch")

// Communicator provides the collective operations of a fixed group of
// ranks. Every rank must make the same sequence of calls; each call blocks
// until all ranks reach it.
type Communicator interface {
	Rank() int
	Size() int
	AllGatherInt(ctx context.Context, v int) ([]int, error)
	AllGather(ctx context.Context, recs []Record) ([][]Record, error)
	Barrier(ctx context.Context) error
}

// Single is the communicator of a run with one rank.
type Single struct{}

func (Single) Rank() int { return 0 }
func (Single) Size() int { return 1 }

func (Single) AllGatherInt(_ context.Context, v int) ([]int, error) { return []int{v}, nil }

func (Single) AllGather(_ context.Context, recs []Record) ([][]Record, error) {
	return [][]Record{append([]Record(nil), recs...)}, nil
}

func (Single) Barrier(context.Context) error { return nil }

// NewLocalGroup returns n communicators connected in memory, one per
// goroutine.
func NewLocalGroup(n int) []Communicator {
	g := &localGroup{size: n, slots: make([]any, n)}
	g.cond = sync.NewCond(&g.mu)
	comms := make([]Communicator, n)
	for i := range comms {
		comms[i] = &localRank{group: g, rank: i}
	}
	return comms
}

// localGroup is a reusable rendezvous. The last rank to arrive publishes the
// slots and starts the next generation.
type localGroup struct {
	mu      sync.Mutex
	cond    *sync.Cond
	size    int
	arrived int
	gen     uint64
	slots   []any
	done    []any
}

func (g *localGroup) gather(ctx context.Context, rank int, v any) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		g.mu.Lock()
		g.cond.Broadcast()
		g.mu.Unlock()
	})
	defer stop()

	g.mu.Lock()
	defer g.mu.Unlock()

	gen := g.gen
	g.slots[rank] = v
	g.arrived++
	if g.arrived == g.size {
		g.done = g.slots
		g.slots = make([]any, g.size)
		g.arrived = 0
		g.gen++
		g.cond.Broadcast()
		return g.done, nil
	}
	for gen == g.gen && ctx.Err() == nil {
		g.cond.Wait()
	}
	if gen == g.gen {
		// Cancelled before the round completed: withdraw.
		g.slots[rank] = nil
		g.arrived--
		return nil, ctx.Err()
	}
	return g.done, nil
}

type localRank struct {
	group *localGroup
	rank  int
}

func (r *localRank) Rank() int { return r.rank }
func (r *localRank) Size() int { return r.group.size }

func (r *localRank) AllGatherInt(ctx context.Context, v int) ([]int, error) {
	all, err := r.group.gather(ctx, r.rank, v)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(all))
	for i, a := range all {
		out[i] = a.(int)
	}
	return out, nil
}

func (r *localRank) AllGather(ctx context.Context, recs []Record) ([][]Record, error) {
	all, err := r.group.gather(ctx, r.rank, append([]Record(nil), recs...))
	if err != nil {
		return nil, err
	}
	out := make([][]Record, len(all))
	for i, a := range all {
		out[i] = append([]Record(nil), a.([]Record)...)
	}
	return out, nil
}

func (r *localRank) Barrier(ctx context.Context) error {
	_, err := r.group.gather(ctx, r.rank, nil)
	return err
}
