package model

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// PaymentIDSize is the fixed length of a payment identifier in bytes
const PaymentIDSize = 32

// PaymentID is the caller-supplied key of a pending claim
type PaymentID [PaymentIDSize]byte

// ParsePaymentID decodes a 64 character hex string (optional 0x prefix)
func ParsePaymentID(s string) (PaymentID, error) {
	var id PaymentID
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != hex.EncodedLen(PaymentIDSize) {
		return id, fmt.Errorf("payment id must be %d hex characters, got %d", hex.EncodedLen(PaymentIDSize), len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("decode payment id: %w", err)
	}
	return id, nil
}

// PaymentIDFromBytes copies b into a PaymentID, rejecting the wrong length
func PaymentIDFromBytes(b []byte) (PaymentID, error) {
	var id PaymentID
	if len(b) != PaymentIDSize {
		return id, fmt.Errorf("payment id must be %d bytes, got %d", PaymentIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

func (id PaymentID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalText renders the id as lowercase hex
func (id PaymentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses a hex id
func (id *PaymentID) UnmarshalText(text []byte) error {
	parsed, err := ParsePaymentID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Identity names an authenticated party (originator or recipient).
// With Schnorr authorization it is a hex x-only secp256k1 public key.
type Identity string

func (i Identity) String() string {
	return string(i)
}

// PendingClaim is an accepted but not yet settled payment
type PendingClaim struct {
	Originator     Identity  `json:"originator" yaml:"originator"`
	PaymentAmount  Amount    `json:"payment_amount" yaml:"payment_amount"`
	FeeAmount      Amount    `json:"fee_amount" yaml:"fee_amount"`
	Recipient      Identity  `json:"recipient" yaml:"recipient"`
	ExpirySequence uint32    `json:"expiry_sequence" yaml:"expiry_sequence"` // Ledger sequence at which the claim lapses
	PaymentID      PaymentID `json:"payment_id" yaml:"payment_id"`
}

// Equal reports whether two claims carry identical fields
func (c PendingClaim) Equal(o PendingClaim) bool {
	return c.Originator == o.Originator &&
		c.PaymentAmount.Equal(o.PaymentAmount) &&
		c.FeeAmount.Equal(o.FeeAmount) &&
		c.Recipient == o.Recipient &&
		c.ExpirySequence == o.ExpirySequence &&
		c.PaymentID == o.PaymentID
}

// RegisterRequest carries the inputs of a claim registration
type RegisterRequest struct {
	Originator    Identity
	PaymentAmount Amount
	FeeAmount     Amount
	Recipient     Identity
	ClaimPeriod   uint32 // Ledger sequences until expiry
	PaymentID     PaymentID
	Proof         []byte // Authorization proof for Originator
}
