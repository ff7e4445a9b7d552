package auth

import (
	"fmt"

	"github.com/ppiankov/claimvault/internal/model"
)

// Verifier decides whether proof authorizes originator to act on digest
type Verifier interface {
	Verify(originator model.Identity, digest [32]byte, proof []byte) bool
}

// Mode names accepted by NewVerifier
const (
	ModeSchnorr  = "schnorr"
	ModeAllowAll = "allow-all"
	ModeStatic   = "static"
)

// NewVerifier returns the verifier for the configured mode. The static
// mode allows exactly cfg.Allowed.
func NewVerifier(cfg model.AuthConfig) (Verifier, error) {
	switch cfg.Mode {
	case ModeSchnorr, "":
		return SchnorrVerifier{}, nil
	case ModeAllowAll:
		return AllowAll{}, nil
	case ModeStatic:
		if len(cfg.Allowed) == 0 {
			return nil, fmt.Errorf("auth mode %q needs at least one allowed identity", ModeStatic)
		}
		return NewStaticVerifier(cfg.Allowed...), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// AllowAll accepts every call, standing in for a host that has already
// authenticated the caller
type AllowAll struct{}

func (AllowAll) Verify(model.Identity, [32]byte, []byte) bool {
	return true
}

// StaticVerifier accepts a fixed set of identities, standing in for a
// host that authenticates callers against an allow-list
type StaticVerifier struct {
	allowed map[model.Identity]bool
}

// NewStaticVerifier creates a verifier allowing the given identities
func NewStaticVerifier(ids ...model.Identity) *StaticVerifier {
	v := &StaticVerifier{allowed: make(map[model.Identity]bool, len(ids))}
	for _, id := range ids {
		v.allowed[id] = true
	}
	return v
}

func (v *StaticVerifier) Verify(originator model.Identity, _ [32]byte, _ []byte) bool {
	return v.allowed[originator]
}
