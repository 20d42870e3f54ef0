package wsgroup

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pthm-cable/tracer/exchange"
)

// Hub gathers the contributions of every rank to each collective and sends
// the result back to all of them.
type Hub struct {
	size     int
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	peers  []*peer
	rounds map[uint64]*round
}

type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) send(r reply) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(r)
}

type round struct {
	op      string
	arrived int
	ints    []int
	records [][]exchange.Record
	err     error
}

// NewHub creates a hub for a group of size ranks.
func NewHub(size int, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		size: size,
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		peers:  make([]*peer, size),
		rounds: make(map[uint64]*round),
	}
}

// ServeHTTP upgrades the connection and serves one rank until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var hello request
	if err := conn.ReadJSON(&hello); err != nil {
		h.log.Warn("reading hello", "error", err)
		return
	}
	p := &peer{conn: conn}
	if err := h.join(hello, p); err != nil {
		_ = p.send(reply{Error: err.Error()})
		return
	}
	defer h.leave(hello.Rank, p)
	if err := p.send(reply{}); err != nil {
		return
	}
	h.log.Info("rank joined", "rank", hello.Rank, "size", h.size)

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("rank read failed", "rank", hello.Rank, "error", err)
			}
			return
		}
		req.Rank = hello.Rank
		h.contribute(req)
	}
}

func (h *Hub) join(hello request, p *peer) error {
	if hello.Op != opHello {
		return fmt.Errorf("%w: expected hello, got %q", ErrOpMismatch, hello.Op)
	}
	if hello.Size != h.size {
		return fmt.Errorf("%w: hub size %d, rank expects %d", exchange.ErrSizeMismatch, h.size, hello.Size)
	}
	if hello.Rank < 0 || hello.Rank >= h.size {
		return fmt.Errorf("%w: %d of %d", ErrBadRank, hello.Rank, h.size)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.peers[hello.Rank] != nil {
		return fmt.Errorf("%w: %d", ErrRankTaken, hello.Rank)
	}
	h.peers[hello.Rank] = p
	return nil
}

func (h *Hub) leave(rank int, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.peers[rank] == p {
		h.peers[rank] = nil
	}
}

// contribute records req and, once every rank has contributed to the same
// sequence number, broadcasts the gathered result.
func (h *Hub) contribute(req request) {
	h.mu.Lock()
	rd, ok := h.rounds[req.Seq]
	if !ok {
		rd = &round{op: req.Op, ints: make([]int, h.size), records: make([][]exchange.Record, h.size)}
		h.rounds[req.Seq] = rd
	}
	if req.Op != rd.op && rd.err == nil {
		rd.err = fmt.Errorf("%w: seq %d has %q and %q", ErrOpMismatch, req.Seq, rd.op, req.Op)
	}
	rd.ints[req.Rank] = req.Int
	rd.records[req.Rank] = req.Records
	rd.arrived++
	if rd.arrived < h.size {
		h.mu.Unlock()
		return
	}
	delete(h.rounds, req.Seq)
	peers := append([]*peer(nil), h.peers...)
	h.mu.Unlock()

	out := reply{Seq: req.Seq}
	switch {
	case rd.err != nil:
		out.Error = rd.err.Error()
	case rd.op == opInts:
		out.Ints = rd.ints
	case rd.op == opRecords:
		out.Records = rd.records
	}
	for rank, p := range peers {
		if p == nil {
			continue
		}
		if err := p.send(out); err != nil {
			h.log.Warn("broadcast failed", "rank", rank, "seq", req.Seq, "error", err)
		}
	}
}
