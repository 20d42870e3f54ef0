package exchange

import (
	"context"
	"fmt"
)

const initialCapacity = 16

// Exchanger buffers the particles a rank hands off during a window and
// trades them with every other rank.
type Exchanger struct {
	comm      Communicator
	out       []Record
	lastTotal int
	nextID    int64
}

func NewExchanger(comm Communicator) *Exchanger {
	return &Exchanger{comm: comm}
}

// Comm returns the underlying communicator.
func (x *Exchanger) Comm() Communicator { return x.comm }

// Collect queues r for the next Exchange.
func (x *Exchanger) Collect(r Record) {
	if len(x.out) == cap(x.out) {
		grown := make([]Record, len(x.out), max(initialCapacity, 2*cap(x.out)))
		copy(grown, x.out)
		x.out = grown
	}
	x.out = append(x.out, r)
}

// Pending returns the number of queued records.
func (x *Exchanger) Pending() int { return len(x.out) }

// Discard drops the queued records without sending them.
func (x *Exchanger) Discard() { x.out = x.out[:0] }

// LastTotal returns the global number of records offered by the latest
// Exchange.
func (x *Exchanger) LastTotal() int { return x.lastTotal }

// Exchange gathers every rank's queued records and returns those offered by
// the other ranks, in rank order. When no rank has anything to send the data
// gather is skipped. The send buffer is emptied.
func (x *Exchanger) Exchange(ctx context.Context) ([]Record, error) {
	counts, err := x.comm.AllGatherInt(ctx, len(x.out))
	if err != nil {
		return nil, fmt.Errorf("gathering hand-off counts: %w", err)
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	x.lastTotal = total
	if total == 0 {
		return nil, nil
	}

	all, err := x.comm.AllGather(ctx, x.out)
	x.out = x.out[:0]
	if err != nil {
		return nil, fmt.Errorf("gathering hand-offs: %w", err)
	}
	if len(all) != len(counts) {
		return nil, fmt.Errorf("%w: %d slices for %d ranks", ErrSizeMismatch, len(all), len(counts))
	}

	in := make([]Record, 0, total-counts[x.comm.Rank()])
	for rank, recs := range all {
		if rank == x.comm.Rank() {
			continue
		}
		in = append(in, recs...)
	}
	return in, nil
}

// AssignIDs reserves n consecutive ids for this rank and returns the first.
// Every rank must call it, including ranks with nothing to inject.
func (x *Exchanger) AssignIDs(ctx context.Context, n int) (int64, error) {
	counts, err := x.comm.AllGatherInt(ctx, n)
	if err != nil {
		return 0, fmt.Errorf("gathering seed counts: %w", err)
	}
	first := x.nextID
	var total int64
	for rank, c := range counts {
		if rank < x.comm.Rank() {
			first += int64(c)
		}
		total += int64(c)
	}
	x.nextID += total
	return first, nil
}

// Reset clears the buffer and restarts ids at zero.
func (x *Exchanger) Reset() {
	x.out = x.out[:0]
	x.lastTotal = 0
	x.nextID = 0
}
