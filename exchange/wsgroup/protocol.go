// Package wsgroup runs the exchange collectives over websockets. One Hub
// serves a fixed-size group; each rank connects with a Client.
package wsgroup

import (
	"errors"

	"github.com/pthm-cable/tracer/exchange"
)

var (
	ErrRankTaken  = errors.New("wsgroup: rank already connected")
	ErrBadRank    = errors.New("wsgroup: rank out of range")
	ErrOpMismatch = errors.New("wsgroup: ranks disagree on the collective")
	ErrHub        = errors.New("wsgroup: hub error")
)

const (
	opHello   = "hello"
	opInts    = "ints"
	opRecords = "records"
	opBarrier = "barrier"
)

// request is one rank's contribution to a collective.
type request struct {
	Seq     uint64            `json:"seq"`
	Op      string            `json:"op"`
	Rank    int               `json:"rank"`
	Size    int               `json:"size,omitempty"`
	Int     int               `json:"int,omitempty"`
	Records []exchange.Record `json:"records,omitempty"`
}

// reply carries the gathered contributions of every rank.
type reply struct {
	Seq     uint64              `json:"seq"`
	Ints    []int               `json:"ints,omitempty"`
	Records [][]exchange.Record `json:"records,omitempty"`
	Error   string              `json:"error,omitempty"`
}
