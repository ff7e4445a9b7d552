// Package registry records pending claims: payments that were accepted
// but not yet settled.
//
// A claim is written under its payment id and the id is appended to a
// single ordered index. Both writes happen in one store transaction, so
// a failed registration leaves no trace. Payment ids are not checked
// for uniqueness: registering an id again replaces the stored claim and
// appends the id to the index a second time.
//
// The expiry sequence is recorded only. Nothing in this package acts on
// it.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ppiankov/claimvault/internal/auth"
	"github.com/ppiankov/claimvault/internal/codec"
	"github.com/ppiankov/claimvault/internal/index"
	"github.com/ppiankov/claimvault/internal/ledger"
	"github.com/ppiankov/claimvault/internal/model"
	"github.com/ppiankov/claimvault/internal/store"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Registry is the pending-claim registry
type Registry struct {
	store           store.Store
	index           index.Index
	verifier        auth.Verifier
	sequence        ledger.SequenceSource
	logger          zerolog.Logger
	promRegistry    prometheus.Registerer
	metrics         *metrics
	defaultPageSize int
	maxPageSize     int

	// Registrations run one at a time
	mu sync.Mutex
}

// New creates a registry over s. verifier gates registrations and seq
// supplies the ledger sequence used for expiry.
func New(s store.Store, verifier auth.Verifier, seq ledger.SequenceSource, opts ...OptionFunc) *Registry {
	r := &Registry{
		store:           s,
		index:           index.NewSingletonIndex(),
		verifier:        verifier,
		sequence:        seq,
		logger:          zerolog.Nop(),
		defaultPageSize: DefaultPageSize,
		maxPageSize:     MaxPageSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.defaultPageSize > r.maxPageSize {
		r.defaultPageSize = r.maxPageSize
	}
	if r.promRegistry != nil {
		r.registerMetrics()
	}
	return r
}

// RegisterClaim authorizes req, computes its expiry and stores the claim.
// On any error the store is left unchanged.
func (r *Registry) RegisterClaim(ctx context.Context, req model.RegisterRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !req.PaymentAmount.InRange() {
		r.recordFailure(reasonInvalidAmount)
		return fmt.Errorf("%w: payment amount %s", ErrInvalidAmount, req.PaymentAmount)
	}
	if !req.FeeAmount.InRange() {
		r.recordFailure(reasonInvalidAmount)
		return fmt.Errorf("%w: fee amount %s", ErrInvalidAmount, req.FeeAmount)
	}

	if !r.verifier.Verify(req.Originator, req.Digest(), req.Proof) {
		r.recordFailure(reasonUnauthorized)
		return fmt.Errorf("%w: originator %s", ErrUnauthorized, req.Originator)
	}

	current, err := r.sequence.CurrentSequence(ctx)
	if err != nil {
		r.recordFailure(reasonEnvironment)
		return environmentError("read ledger sequence", err)
	}
	if uint64(current)+uint64(req.ClaimPeriod) > math.MaxUint32 {
		r.recordFailure(reasonExpiryOverflow)
		return fmt.Errorf("%w: sequence %d plus period %d", ErrExpiryOverflow, current, req.ClaimPeriod)
	}

	claim := model.PendingClaim{
		Originator:     req.Originator,
		PaymentAmount:  req.PaymentAmount,
		FeeAmount:      req.FeeAmount,
		Recipient:      req.Recipient,
		ExpirySequence: current + req.ClaimPeriod,
		PaymentID:      req.PaymentID,
	}
	data, err := codec.EncodeClaim(claim)
	if err != nil {
		r.recordFailure(reasonEnvironment)
		return environmentError("encode claim", err)
	}

	var indexLen int
	err = r.store.Update(ctx, func(rw store.ReadWriter) error {
		if err := rw.Set(store.ClaimKey(claim.PaymentID), data); err != nil {
			return fmt.Errorf("write claim: %w", err)
		}
		n, err := r.index.Append(rw, claim.PaymentID)
		if err != nil {
			return fmt.Errorf("append index: %w", err)
		}
		indexLen = n
		return nil
	})
	if err != nil {
		r.recordFailure(reasonEnvironment)
		return environmentError("register claim", err)
	}

	r.recordSuccess(indexLen)
	r.logger.Debug().
		Str("payment_id", claim.PaymentID.String()).
		Str("originator", claim.Originator.String()).
		Uint32("expiry_sequence", claim.ExpirySequence).
		Int("index_length", indexLen).
		Msg("registered pending claim")

	return nil
}

// GetClaim returns the claim stored under id. found is false if the id
// was never registered.
func (r *Registry) GetClaim(ctx context.Context, id model.PaymentID) (claim model.PendingClaim, found bool, err error) {
	err = r.store.View(ctx, func(rd store.Reader) error {
		data, err := rd.Get(store.ClaimKey(id))
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		claim, err = codec.DecodeClaim(data)
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return model.PendingClaim{}, false, environmentError("get claim", err)
	}
	return claim, found, nil
}

// ListClaimIDs returns every registered id in registration order,
// including repeats. The list is unbounded; see ListClaimIDsPage.
func (r *Registry) ListClaimIDs(ctx context.Context) ([]model.PaymentID, error) {
	var ids []model.PaymentID
	err := r.store.View(ctx, func(rd store.Reader) error {
		var err error
		ids, err = r.index.All(rd)
		return err
	})
	if err != nil {
		return nil, environmentError("list claim ids", err)
	}
	return ids, nil
}

// Page is one window of the claim index
type Page struct {
	IDs        []model.PaymentID `json:"ids" yaml:"ids"`
	Offset     int               `json:"offset" yaml:"offset"`
	Total      int               `json:"total" yaml:"total"`
	NextOffset int               `json:"next_offset" yaml:"next_offset"`
	HasMore    bool              `json:"has_more" yaml:"has_more"`
}

// ListClaimIDsPage returns up to limit ids starting at offset. A zero limit
// uses the default page size and larger limits are capped. Negative values
// are rejected with ErrInvalidPage.
func (r *Registry) ListClaimIDsPage(ctx context.Context, offset, limit int) (Page, error) {
	if offset < 0 || limit < 0 {
		return Page{}, fmt.Errorf("%w: offset %d limit %d", ErrInvalidPage, offset, limit)
	}
	if limit == 0 {
		limit = r.defaultPageSize
	}
	if limit > r.maxPageSize {
		limit = r.maxPageSize
	}

	var (
		ids   []model.PaymentID
		total int
	)
	err := r.store.View(ctx, func(rd store.Reader) error {
		var err error
		ids, total, err = r.index.Page(rd, offset, limit)
		return err
	})
	if err != nil {
		return Page{}, environmentError("list claim ids page", err)
	}

	next := offset + len(ids)
	return Page{
		IDs:        ids,
		Offset:     offset,
		Total:      total,
		NextOffset: next,
		HasMore:    next < total,
	}, nil
}

func environmentError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrEnvironment, op, err)
}
