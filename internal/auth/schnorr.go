package auth

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/ppiankov/claimvault/internal/model"
)

// SchnorrVerifier checks BIP-340 signatures. Identities are hex encoded
// 32-byte x-only secp256k1 public keys.
type SchnorrVerifier struct{}

func (SchnorrVerifier) Verify(originator model.Identity, digest [32]byte, proof []byte) bool {
	pubBytes, err := hex.DecodeString(string(originator))
	if err != nil {
		return false
	}
	pub, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(proof)
	if err != nil {
		return false
	}
	return sig.Verify(digest[:], pub)
}

// Signer produces proofs accepted by SchnorrVerifier
type Signer struct {
	key *btcec.PrivateKey
}

// GenerateSigner creates a signer with a fresh random key
func GenerateSigner() (*Signer, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Signer{key: key}, nil
}

// ParseSigner loads a hex encoded 32-byte private key
func ParseSigner(hexKey string) (*Signer, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", btcec.PrivKeyBytesLen, len(raw))
	}
	key, _ := btcec.PrivKeyFromBytes(raw)
	return &Signer{key: key}, nil
}

// Identity returns the x-only public key as a hex identity
func (s *Signer) Identity() model.Identity {
	return model.Identity(hex.EncodeToString(schnorr.SerializePubKey(s.key.PubKey())))
}

// PrivateKeyHex returns the private key for storage
func (s *Signer) PrivateKeyHex() string {
	return hex.EncodeToString(s.key.Serialize())
}

// Sign returns a 64-byte signature over digest
func (s *Signer) Sign(digest [32]byte) ([]byte, error) {
	sig, err := schnorr.Sign(s.key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig.Serialize(), nil
}

// SignRequest sets req.Originator to the signer's identity and fills Proof
func (s *Signer) SignRequest(req *model.RegisterRequest) error {
	req.Originator = s.Identity()
	proof, err := s.Sign(req.Digest())
	if err != nil {
		return err
	}
	req.Proof = proof
	return nil
}
