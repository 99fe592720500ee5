package server

import (
	"fmt"

	config "github.com/agentwire/a2a/server/config"
	skills "github.com/agentwire/a2a/server/skills"
	types "github.com/agentwire/a2a/types"
	zap "go.uber.org/zap"
)

// PaymentRequiredError is not a failure: it is the protocol outcome for a
// paid skill invoked without acceptable proof, carrying the requirements the
// caller needs to retry with payment.
type PaymentRequiredError struct {
	SkillID      string
	Requirements types.PaymentRequirements
}

func (e *PaymentRequiredError) Error() string {
	return fmt.Sprintf("payment required for skill %s: %s %s on %s to %s",
		e.SkillID, e.Requirements.Amount, e.Requirements.Asset, e.Requirements.Network, e.Requirements.PayTo)
}

// ProofVerifier decides whether a payment proof token is acceptable. The
// cryptographic verification lives outside this server; implementations
// plug in here.
type ProofVerifier interface {
	// Verify returns nil when the proof is acceptable
	Verify(proof string) error
}

// TokenProofVerifier accepts any non-empty proof token. It stands in for a
// real settlement verifier, which is an external collaborator.
type TokenProofVerifier struct{}

// Verify returns nil when the proof is acceptable
func (v *TokenProofVerifier) Verify(proof string) error {
	if proof == "" {
		return fmt.Errorf("no payment proof supplied")
	}
	return nil
}

// PaymentGate decides whether a skill invocation may proceed
type PaymentGate interface {
	// Check returns nil when the invocation may proceed, or a
	// *PaymentRequiredError carrying the configured requirements.
	Check(skill *skills.Skill, proof string) error

	// Enabled reports whether payment gating is configured and active
	Enabled() bool

	// Requirements returns the configured payment requirements
	Requirements() types.PaymentRequirements
}

// DefaultPaymentGate implements PaymentGate from service configuration
type DefaultPaymentGate struct {
	logger   *zap.Logger
	cfg      config.PaymentConfig
	verifier ProofVerifier
}

var _ PaymentGate = (*DefaultPaymentGate)(nil)

// NewDefaultPaymentGate creates a payment gate from configuration. A nil
// verifier falls back to the token verifier.
func NewDefaultPaymentGate(logger *zap.Logger, cfg config.PaymentConfig, verifier ProofVerifier) *DefaultPaymentGate {
	if verifier == nil {
		verifier = &TokenProofVerifier{}
	}
	return &DefaultPaymentGate{
		logger:   logger,
		cfg:      cfg,
		verifier: verifier,
	}
}

// Check returns nil for free skills, and for paid skills whose proof
// verifies. A paid skill with a disabled gate is allowed through.
func (g *DefaultPaymentGate) Check(skill *skills.Skill, proof string) error {
	if !skill.RequiresPayment {
		return nil
	}

	if !g.cfg.Enable {
		g.logger.Warn("paid skill invoked with payment gating disabled",
			zap.String("skill_id", skill.ID))
		return nil
	}

	if err := g.verifier.Verify(proof); err != nil {
		g.logger.Info("payment required",
			zap.String("skill_id", skill.ID),
			zap.Error(err))
		return &PaymentRequiredError{
			SkillID:      skill.ID,
			Requirements: g.Requirements(),
		}
	}

	return nil
}

// Enabled reports whether payment gating is configured and active
func (g *DefaultPaymentGate) Enabled() bool {
	return g.cfg.Enable
}

// Requirements returns the configured payment requirements
func (g *DefaultPaymentGate) Requirements() types.PaymentRequirements {
	return types.PaymentRequirements{
		Scheme:      g.cfg.Scheme,
		Network:     g.cfg.Network,
		Asset:       g.cfg.Asset,
		Amount:      g.cfg.Amount,
		PayTo:       g.cfg.PayTo,
		Description: g.cfg.Description,
	}
}
