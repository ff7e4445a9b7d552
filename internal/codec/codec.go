// Package codec defines the stored binary form of claims and the claim
// index. The encoding is CBOR with core deterministic options; records
// carry a leading format version so the layout can evolve.
package codec

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/ppiankov/claimvault/internal/model"
)

// FormatVersion is written as the first element of every record
const FormatVersion = 1

// ErrUnsupportedVersion is returned for records written by a newer format
var ErrUnsupportedVersion = errors.New("unsupported record version")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor dec mode: %v", err))
	}
}

// claimRecord is the on-disk layout of a PendingClaim
type claimRecord struct {
	_              struct{} `cbor:",toarray"`
	Version        uint
	Originator     string
	PaymentAmount  []byte // 16 byte two's complement
	FeeAmount      []byte
	Recipient      string
	ExpirySequence uint32
	PaymentID      []byte
}

// EncodeClaim serializes a claim. Amounts must fit 128 bits.
func EncodeClaim(c model.PendingClaim) ([]byte, error) {
	if !c.PaymentAmount.InRange() || !c.FeeAmount.InRange() {
		return nil, fmt.Errorf("encode claim %s: amount exceeds 128 bits", c.PaymentID)
	}
	payment := c.PaymentAmount.FixedBytes()
	fee := c.FeeAmount.FixedBytes()

	rec := claimRecord{
		Version:        FormatVersion,
		Originator:     string(c.Originator),
		PaymentAmount:  payment[:],
		FeeAmount:      fee[:],
		Recipient:      string(c.Recipient),
		ExpirySequence: c.ExpirySequence,
		PaymentID:      c.PaymentID[:],
	}
	data, err := encMode.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode claim %s: %w", c.PaymentID, err)
	}
	return data, nil
}

// DecodeClaim parses a record produced by EncodeClaim
func DecodeClaim(data []byte) (model.PendingClaim, error) {
	var rec claimRecord
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return model.PendingClaim{}, fmt.Errorf("decode claim: %w", err)
	}
	if rec.Version != FormatVersion {
		return model.PendingClaim{}, fmt.Errorf("decode claim: %w: %d", ErrUnsupportedVersion, rec.Version)
	}

	payment, err := fixedAmount(rec.PaymentAmount)
	if err != nil {
		return model.PendingClaim{}, fmt.Errorf("decode claim payment amount: %w", err)
	}
	fee, err := fixedAmount(rec.FeeAmount)
	if err != nil {
		return model.PendingClaim{}, fmt.Errorf("decode claim fee amount: %w", err)
	}
	id, err := model.PaymentIDFromBytes(rec.PaymentID)
	if err != nil {
		return model.PendingClaim{}, fmt.Errorf("decode claim: %w", err)
	}

	return model.PendingClaim{
		Originator:     model.Identity(rec.Originator),
		PaymentAmount:  payment,
		FeeAmount:      fee,
		Recipient:      model.Identity(rec.Recipient),
		ExpirySequence: rec.ExpirySequence,
		PaymentID:      id,
	}, nil
}

func fixedAmount(b []byte) (model.Amount, error) {
	var buf [model.AmountSize]byte
	if len(b) != model.AmountSize {
		return model.Amount{}, fmt.Errorf("amount must be %d bytes, got %d", model.AmountSize, len(b))
	}
	copy(buf[:], b)
	return model.AmountFromFixed(buf), nil
}

// indexRecord is the on-disk layout of the claim index
type indexRecord struct {
	_       struct{} `cbor:",toarray"`
	Version uint
	IDs     [][]byte
}

// EncodeIndex serializes an ordered list of payment ids
func EncodeIndex(ids []model.PaymentID) ([]byte, error) {
	rec := indexRecord{
		Version: FormatVersion,
		IDs:     make([][]byte, len(ids)),
	}
	for i := range ids {
		rec.IDs[i] = ids[i][:]
	}
	data, err := encMode.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	return data, nil
}

// DecodeIndex parses a record produced by EncodeIndex, preserving order
func DecodeIndex(data []byte) ([]model.PaymentID, error) {
	var rec indexRecord
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if rec.Version != FormatVersion {
		return nil, fmt.Errorf("decode index: %w: %d", ErrUnsupportedVersion, rec.Version)
	}

	ids := make([]model.PaymentID, len(rec.IDs))
	for i, raw := range rec.IDs {
		id, err := model.PaymentIDFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decode index entry %d: %w", i, err)
		}
		ids[i] = id
	}
	return ids, nil
}
