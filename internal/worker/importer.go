package worker

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimvault/internal/auth"
	"github.com/ppiankov/claimvault/internal/model"
)

// Registrar registers a single claim
type Registrar interface {
	RegisterClaim(ctx context.Context, req model.RegisterRequest) error
}

// ImportFile is the YAML layout accepted by ReadImportFile
type ImportFile struct {
	Claims []ClaimEntry `yaml:"claims"`
}

// ClaimEntry is one registration in an import file. Either PrivateKey
// (the entry is signed on import) or Signature must authorize it unless
// the registry runs without authorization.
type ClaimEntry struct {
	Originator    model.Identity  `yaml:"originator,omitempty"`
	PrivateKey    string          `yaml:"private_key,omitempty"`
	Signature     string          `yaml:"signature,omitempty"`
	Recipient     model.Identity  `yaml:"recipient"`
	PaymentAmount model.Amount    `yaml:"payment_amount"`
	FeeAmount     model.Amount    `yaml:"fee_amount"`
	ClaimPeriod   uint32          `yaml:"claim_period"`
	PaymentID     model.PaymentID `yaml:"payment_id"`
}

// Request builds the registration request, signing it when a private key
// is present
func (e ClaimEntry) Request() (model.RegisterRequest, error) {
	req := model.RegisterRequest{
		Originator:    e.Originator,
		PaymentAmount: e.PaymentAmount,
		FeeAmount:     e.FeeAmount,
		Recipient:     e.Recipient,
		ClaimPeriod:   e.ClaimPeriod,
		PaymentID:     e.PaymentID,
	}

	if e.PrivateKey != "" {
		signer, err := auth.ParseSigner(e.PrivateKey)
		if err != nil {
			return req, err
		}
		if e.Originator != "" && e.Originator != signer.Identity() {
			return req, fmt.Errorf("private key does not match originator %s", e.Originator)
		}
		if err := signer.SignRequest(&req); err != nil {
			return req, err
		}
		return req, nil
	}

	if e.Signature != "" {
		proof, err := hex.DecodeString(e.Signature)
		if err != nil {
			return req, fmt.Errorf("decode signature: %w", err)
		}
		req.Proof = proof
	}
	return req, nil
}

// RegisterJob registers one import entry
type RegisterJob struct {
	Position  int
	Entry     ClaimEntry
	Registrar Registrar
	Limiter   *Limiter
}

// Execute runs the registration after waiting for the originator's rate limit
func (j *RegisterJob) Execute(ctx context.Context) Result {
	result := &RegisterResult{
		Position:  j.Position,
		PaymentID: j.Entry.PaymentID,
	}

	req, err := j.Entry.Request()
	if err != nil {
		result.Error = fmt.Errorf("build request: %w", err)
		return result
	}
	result.Originator = req.Originator

	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, string(req.Originator)); err != nil {
			result.Error = fmt.Errorf("rate limit: %w", err)
			return result
		}
	}

	result.Error = j.Registrar.RegisterClaim(ctx, req)
	return result
}

// RegisterResult is the outcome of one import entry
type RegisterResult struct {
	Position   int
	PaymentID  model.PaymentID
	Originator model.Identity
	Error      error
}

// GetError returns the registration error
func (r *RegisterResult) GetError() error {
	return r.Error
}

// Importer registers many claims through a worker pool. With more than one
// worker, registration order (and so index order) follows completion order.
type Importer struct {
	registrar Registrar
	workers   int
	limiter   *Limiter
	logger    zerolog.Logger
}

// NewImporter creates an importer. requestsPerSecond and burst apply per
// originator; a non-positive rate disables limiting.
func NewImporter(registrar Registrar, workers int, requestsPerSecond float64, burst int, logger zerolog.Logger) *Importer {
	return &Importer{
		registrar: registrar,
		workers:   workers,
		limiter:   NewLimiter(requestsPerSecond, burst),
		logger:    logger,
	}
}

// ImportEntries registers every entry and returns results in entry order
func (im *Importer) ImportEntries(ctx context.Context, entries []ClaimEntry) []*RegisterResult {
	if len(entries) == 0 {
		return []*RegisterResult{}
	}

	pool := NewPool(ctx, im.workers)
	pool.Start()

	// Submit from a separate goroutine so results can drain meanwhile
	go func() {
		defer pool.Close()
		for i, entry := range entries {
			job := &RegisterJob{
				Position:  i,
				Entry:     entry,
				Registrar: im.registrar,
				Limiter:   im.limiter,
			}
			if !pool.Submit(job) {
				return
			}
		}
	}()

	results := make([]*RegisterResult, len(entries))
	for res := range pool.Results() {
		r := res.(*RegisterResult)
		results[r.Position] = r
		if r.Error != nil {
			im.logger.Warn().Err(r.Error).Int("entry", r.Position).Str("payment_id", r.PaymentID.String()).Msg("claim import failed")
		} else {
			im.logger.Debug().Int("entry", r.Position).Str("payment_id", r.PaymentID.String()).Msg("claim imported")
		}
	}

	// Entries never run because the context ended
	for i := range results {
		if results[i] == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results[i] = &RegisterResult{Position: i, PaymentID: entries[i].PaymentID, Error: err}
		}
	}

	sort.SliceStable(results, func(a, b int) bool { return results[a].Position < results[b].Position })
	return results
}

// ImportFile reads a YAML import file and registers its entries
func (im *Importer) ImportFile(ctx context.Context, path string) ([]*RegisterResult, error) {
	entries, err := ReadImportFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	return im.ImportEntries(ctx, entries), nil
}

// ReadImportFile parses a YAML import file. Duplicate payment ids are kept;
// they register twice like any repeated registration.
func ReadImportFile(path string) ([]ClaimEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	var file ImportFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return file.Claims, nil
}
