package wsgroup

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pthm-cable/tracer/exchange"
	"golang.org/x/sync/errgroup"
)

func startHub(t *testing.T, size int) string {
	t.Helper()
	srv := httptest.NewServer(NewHub(size, nil))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestCollectives(t *testing.T) {
	const size = 3
	url := startHub(t, size)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	received := make([][]exchange.Record, size)
	firsts := make([]int64, size)
	g, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < size; rank++ {
		g.Go(func() error {
			c, err := Dial(ctx, url, rank, size)
			if err != nil {
				return err
			}
			defer c.Close()

			counts, err := c.AllGatherInt(ctx, rank*10)
			if err != nil {
				return err
			}
			for i, n := range counts {
				if n != i*10 {
					t.Errorf("rank %d: counts[%d] = %d", rank, i, n)
				}
			}

			x := exchange.NewExchanger(c)
			if firsts[rank], err = x.AssignIDs(ctx, rank+1); err != nil {
				return err
			}
			if rank == 1 {
				x.Collect(exchange.Record{ID: 42, X: [4]float64{0.5, 0, 0, 0.25}})
			}
			if received[rank], err = x.Exchange(ctx); err != nil {
				return err
			}
			return c.Barrier(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if want := []int64{0, 1, 3}; firsts[0] != want[0] || firsts[1] != want[1] || firsts[2] != want[2] {
		t.Errorf("first ids = %v, want %v", firsts, want)
	}
	for rank, recs := range received {
		want := 1
		if rank == 1 {
			want = 0
		}
		if len(recs) != want {
			t.Fatalf("rank %d received %d records, want %d", rank, len(recs), want)
		}
		if want == 1 && (recs[0].ID != 42 || recs[0].X[3] != 0.25) {
			t.Errorf("rank %d received %+v", rank, recs[0])
		}
	}
}

func TestDialRejectsWrongSize(t *testing.T) {
	url := startHub(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := Dial(ctx, url, 0, 3); !errors.Is(err, ErrHub) {
		t.Errorf("expected ErrHub, got %v", err)
	}
}

func TestDialRejectsDuplicateRank(t *testing.T) {
	url := startHub(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := Dial(ctx, url, 0, 2); !errors.Is(err, ErrHub) {
		t.Errorf("expected ErrHub, got %v", err)
	}
}

func TestCancelUnblocksWaitingRank(t *testing.T) {
	url := startHub(t, 2)
	dialCtx, cancelDial := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelDial()
	c, err := Dial(dialCtx, url, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// Rank 1 never joins, so the barrier can only end by cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Barrier(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("barrier still blocked after cancellation")
	}
}
