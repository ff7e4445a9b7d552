package model

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// RegistrationTag domain-separates registration digests from other signed data
var RegistrationTag = []byte("claimvault/register")

// Digest returns the tagged hash an originator signs to authorize the
// registration. The proof itself is not covered.
func (r RegisterRequest) Digest() [32]byte {
	var msg []byte
	msg = appendLengthPrefixed(msg, []byte(r.Originator))
	payment := r.PaymentAmount.FixedBytes()
	msg = append(msg, payment[:]...)
	fee := r.FeeAmount.FixedBytes()
	msg = append(msg, fee[:]...)
	msg = appendLengthPrefixed(msg, []byte(r.Recipient))
	msg = binary.BigEndian.AppendUint32(msg, r.ClaimPeriod)
	msg = append(msg, r.PaymentID[:]...)

	return *chainhash.TaggedHash(RegistrationTag, msg)
}

func appendLengthPrefixed(dst, b []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(b)))
	return append(dst, b...)
}
