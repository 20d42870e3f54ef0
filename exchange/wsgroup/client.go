package wsgroup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pthm-cable/tracer/exchange"
)

// Client is one rank's connection to a Hub. It implements
// exchange.Communicator and must not be used from more than one goroutine.
type Client struct {
	conn *websocket.Conn
	rank int
	size int
	seq  uint64
}

var _ exchange.Communicator = (*Client)(nil)

// Dial connects to the hub at url as rank of a size-rank group.
func Dial(ctx context.Context, url string, rank, size int) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing hub %s: %w", url, err)
	}
	c := &Client{conn: conn, rank: rank, size: size}
	if _, err := c.roundTrip(ctx, request{Op: opHello, Rank: rank, Size: size}); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Rank() int { return c.rank }
func (c *Client) Size() int { return c.size }

func (c *Client) AllGatherInt(ctx context.Context, v int) ([]int, error) {
	r, err := c.collective(ctx, request{Op: opInts, Int: v})
	if err != nil {
		return nil, err
	}
	if len(r.Ints) != c.size {
		return nil, fmt.Errorf("%w: got %d counts", exchange.ErrSizeMismatch, len(r.Ints))
	}
	return r.Ints, nil
}

func (c *Client) AllGather(ctx context.Context, recs []exchange.Record) ([][]exchange.Record, error) {
	r, err := c.collective(ctx, request{Op: opRecords, Records: recs})
	if err != nil {
		return nil, err
	}
	if len(r.Records) != c.size {
		return nil, fmt.Errorf("%w: got %d slices", exchange.ErrSizeMismatch, len(r.Records))
	}
	return r.Records, nil
}

func (c *Client) Barrier(ctx context.Context) error {
	_, err := c.collective(ctx, request{Op: opBarrier})
	return err
}

// Close says goodbye to the hub and closes the connection.
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

func (c *Client) collective(ctx context.Context, req request) (reply, error) {
	c.seq++
	req.Seq = c.seq
	req.Rank = c.rank
	r, err := c.roundTrip(ctx, req)
	if err != nil {
		return reply{}, err
	}
	if r.Seq != req.Seq {
		return reply{}, fmt.Errorf("%w: reply for seq %d, expected %d", ErrHub, r.Seq, req.Seq)
	}
	return r, nil
}

// roundTrip sends req and waits for the hub's answer. Only one request is
// ever outstanding, so the next frame is the reply. Cancelling ctx expires
// the connection deadlines, which leaves the client unusable.
func (c *Client) roundTrip(ctx context.Context, req request) (reply, error) {
	if err := ctx.Err(); err != nil {
		return reply{}, err
	}
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return reply{}, err
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return reply{}, err
	}
	stop := context.AfterFunc(ctx, func() {
		now := time.Now()
		_ = c.conn.SetReadDeadline(now)
		_ = c.conn.SetWriteDeadline(now)
	})
	defer stop()

	if err := c.conn.WriteJSON(req); err != nil {
		return reply{}, fmt.Errorf("sending %s: %w", req.Op, cancelled(ctx, err))
	}
	var r reply
	if err := c.conn.ReadJSON(&r); err != nil {
		return reply{}, fmt.Errorf("waiting for %s: %w", req.Op, cancelled(ctx, err))
	}
	if r.Error != "" {
		return reply{}, errors.Join(ErrHub, errors.New(r.Error))
	}
	return r, nil
}

// cancelled prefers the context's error over the timeout it caused.
func cancelled(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
