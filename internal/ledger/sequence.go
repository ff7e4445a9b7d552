// Package ledger supplies the current ledger sequence number used as the
// logical clock for claim expiry.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/ppiankov/claimvault/internal/model"
)

// ErrBeforeGenesis is returned by Clock for times earlier than its genesis
var ErrBeforeGenesis = errors.New("time is before ledger genesis")

// SequenceSource reports the current ledger sequence
type SequenceSource interface {
	CurrentSequence(ctx context.Context) (uint32, error)
}

// Static reports a settable fixed sequence
type Static struct {
	seq atomic.Uint32
}

// NewStatic returns a source fixed at seq
func NewStatic(seq uint32) *Static {
	s := &Static{}
	s.seq.Store(seq)
	return s
}

func (s *Static) CurrentSequence(ctx context.Context) (uint32, error) {
	return s.seq.Load(), ctx.Err()
}

// Set moves the sequence. Callers are responsible for keeping it monotonic.
func (s *Static) Set(seq uint32) {
	s.seq.Store(seq)
}

// Advance adds n to the sequence and returns the new value
func (s *Static) Advance(n uint32) uint32 {
	return s.seq.Add(n)
}

// Clock derives the sequence from wall time: one tick per close interval
// since genesis
type Clock struct {
	genesisSeq  uint32
	genesisTime time.Time
	interval    time.Duration
	now         func() time.Time
}

// NewClock creates a clock source. now may be nil to use time.Now.
func NewClock(genesisSeq uint32, genesisTime time.Time, interval time.Duration, now func() time.Time) (*Clock, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("close interval must be positive, got %s", interval)
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{
		genesisSeq:  genesisSeq,
		genesisTime: genesisTime,
		interval:    interval,
		now:         now,
	}, nil
}

func (c *Clock) CurrentSequence(ctx context.Context) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	elapsed := c.now().Sub(c.genesisTime)
	if elapsed < 0 {
		return 0, ErrBeforeGenesis
	}
	ticks := uint64(elapsed / c.interval)
	seq := uint64(c.genesisSeq) + ticks
	if seq > math.MaxUint32 {
		return 0, fmt.Errorf("ledger sequence %d exceeds 32 bits", seq)
	}
	return uint32(seq), nil
}

// Source names accepted by NewSource
const (
	SourceClock  = "clock"
	SourceStatic = "static"
)

// NewSource builds the configured sequence source
func NewSource(cfg model.LedgerConfig) (SequenceSource, error) {
	switch cfg.Source {
	case SourceStatic:
		return NewStatic(cfg.Sequence), nil
	case SourceClock, "":
		return NewClock(cfg.GenesisSequence, time.Unix(cfg.GenesisUnix, 0), cfg.CloseInterval, nil)
	default:
		return nil, fmt.Errorf("unknown ledger source %q", cfg.Source)
	}
}
