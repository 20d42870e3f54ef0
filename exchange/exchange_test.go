package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// runRanks runs fn once per rank of an n-rank local group.
func runRanks(t *testing.T, n int, fn func(ctx context.Context, x *Exchanger) error) {
	t.Helper()
	g, ctx := errgroup.WithContext(context.Background())
	for _, c := range NewLocalGroup(n) {
		x := NewExchanger(c)
		g.Go(func() error { return fn(ctx, x) })
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestSingleIsNoOp(t *testing.T) {
	x := NewExchanger(Single{})
	x.Collect(Record{ID: 3})
	in, err := x.Exchange(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(in) != 0 {
		t.Errorf("single rank received %d records", len(in))
	}
	if x.LastTotal() != 1 || x.Pending() != 0 {
		t.Errorf("LastTotal = %d, Pending = %d", x.LastTotal(), x.Pending())
	}
	if err := x.Comm().Barrier(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestCollectGrowsBuffer(t *testing.T) {
	x := NewExchanger(Single{})
	for i := 0; i < 40; i++ {
		x.Collect(Record{ID: int64(i)})
	}
	if x.Pending() != 40 {
		t.Fatalf("Pending = %d", x.Pending())
	}
	for i, r := range x.out {
		if r.ID != int64(i) {
			t.Fatalf("record %d has id %d", i, r.ID)
		}
	}
	x.Discard()
	if x.Pending() != 0 {
		t.Errorf("Pending after Discard = %d", x.Pending())
	}
}

func TestExchangeDropsOwnRecords(t *testing.T) {
	const n = 3
	got := make([][]Record, n)
	runRanks(t, n, func(ctx context.Context, x *Exchanger) error {
		rank := x.Comm().Rank()
		for i := 0; i <= rank; i++ {
			x.Collect(Record{ID: int64(10*rank + i)})
		}
		in, err := x.Exchange(ctx)
		got[rank] = in
		return err
	})

	want := map[int][]int64{
		0: {10, 11, 20, 21, 22},
		1: {0, 20, 21, 22},
		2: {0, 10, 11},
	}
	for rank, ids := range want {
		if len(got[rank]) != len(ids) {
			t.Fatalf("rank %d received %d records, want %d", rank, len(got[rank]), len(ids))
		}
		for i, id := range ids {
			if got[rank][i].ID != id {
				t.Errorf("rank %d record %d = %d, want %d", rank, i, got[rank][i].ID, id)
			}
		}
	}
}

func TestExchangeShortCircuit(t *testing.T) {
	runRanks(t, 2, func(ctx context.Context, x *Exchanger) error {
		in, err := x.Exchange(ctx)
		if err != nil {
			return err
		}
		if in != nil || x.LastTotal() != 0 {
			t.Errorf("rank %d: expected nothing, got %d records (total %d)", x.Comm().Rank(), len(in), x.LastTotal())
		}
		return nil
	})
}

func TestAssignIDs(t *testing.T) {
	counts := []int{3, 0, 2}
	firsts := make([][]int64, len(counts))
	runRanks(t, len(counts), func(ctx context.Context, x *Exchanger) error {
		rank := x.Comm().Rank()
		for round := 0; round < 2; round++ {
			first, err := x.AssignIDs(ctx, counts[rank])
			if err != nil {
				return err
			}
			firsts[rank] = append(firsts[rank], first)
		}
		return nil
	})

	want := [][]int64{{0, 5}, {3, 8}, {3, 8}}
	for rank := range want {
		for round := range want[rank] {
			if firsts[rank][round] != want[rank][round] {
				t.Errorf("rank %d round %d first id = %d, want %d", rank, round, firsts[rank][round], want[rank][round])
			}
		}
	}
}

func TestResetRestartsIDs(t *testing.T) {
	x := NewExchanger(Single{})
	ctx := context.Background()
	if _, err := x.AssignIDs(ctx, 4); err != nil {
		t.Fatal(err)
	}
	x.Reset()
	first, err := x.AssignIDs(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if first != 0 {
		t.Errorf("first id after Reset = %d", first)
	}
}

func TestLocalGroupCancelled(t *testing.T) {
	comms := NewLocalGroup(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := comms[0].AllGatherInt(ctx, 1); err == nil {
		t.Error("expected an error from a cancelled context")
	}
}

func TestLocalGroupWakesOnCancel(t *testing.T) {
	comms := NewLocalGroup(2)
	failed := errors.New("rank 0 failed")

	g, ctx := errgroup.WithContext(context.Background())
	blocked := make(chan error, 1)
	g.Go(func() error {
		time.Sleep(20 * time.Millisecond)
		return failed
	})
	g.Go(func() error {
		err := comms[1].Barrier(ctx)
		blocked <- err
		return err
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		if !errors.Is(err, failed) {
			t.Errorf("group error = %v, want %v", err, failed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiting rank did not return after cancellation")
	}
	if err := <-blocked; !errors.Is(err, context.Canceled) {
		t.Errorf("waiting rank returned %v, want context.Canceled", err)
	}

	// The withdrawn contribution leaves the group usable.
	g, ctx = errgroup.WithContext(context.Background())
	counts := make([][]int, 2)
	for rank, c := range comms {
		g.Go(func() error {
			var err error
			counts[rank], err = c.AllGatherInt(ctx, rank+1)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	for rank, got := range counts {
		if len(got) != 2 || got[0] != 1 || got[1] != 2 {
			t.Errorf("rank %d gathered %v, want [1 2]", rank, got)
		}
	}
}
