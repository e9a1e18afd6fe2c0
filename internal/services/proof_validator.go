package services

import (
	"fmt"
	"strings"

	"gift-backend/internal/config"
	"gift-backend/internal/errs"
	"gift-backend/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gagliardetto/solana-go"
)

// ValidationResult outcome of the offline proof format check
type ValidationResult struct {
	OK     bool      `json:"ok"`
	Code   errs.Code `json:"code,omitempty"`
	Reason string    `json:"reason"`
	Family string    `json:"family,omitempty"`
}

// Err returns the result as an error, nil when OK.
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	return fmt.Errorf("%w: %s", errs.Sentinel(r.Code), r.Reason)
}

// ProofValidator checks the shape of a payment proof without any I/O
type ProofValidator struct {
	ledgerKind string
	families   []config.ProofFamilyConfig
}

// NewProofValidator build a validator for one ledger kind and family registry
func NewProofValidator(ledgerKind string, families []config.ProofFamilyConfig) *ProofValidator {
	return &ProofValidator{
		ledgerKind: ledgerKind,
		families:   append([]config.ProofFamilyConfig(nil), families...),
	}
}

// Validate is pure and deterministic.
func (v *ProofValidator) Validate(proof *models.PaymentProof) ValidationResult {
	if proof == nil {
		return invalid(errs.CodeMalformedProof, "proof is required")
	}
	switch {
	case strings.TrimSpace(proof.Commitment) == "":
		return invalid(errs.CodeMalformedProof, "commitment is required")
	case strings.TrimSpace(proof.ProofBlob) == "":
		return invalid(errs.CodeMalformedProof, "proof is required")
	case strings.TrimSpace(proof.LedgerTxRef) == "":
		return invalid(errs.CodeMalformedProof, "transaction reference is required")
	}

	if reason := v.checkLedgerRef(proof.LedgerTxRef); reason != "" {
		return invalid(errs.CodeMalformedReference, reason)
	}

	family, ok := v.matchFamily(proof)
	if !ok {
		return invalid(errs.CodeUnrecognizedProofFormat, "proof does not match any accepted format")
	}

	return ValidationResult{OK: true, Reason: "proof format accepted", Family: family}
}

func (v *ProofValidator) checkLedgerRef(ref string) string {
	switch v.ledgerKind {
	case config.LedgerEVM:
		raw, err := hexutil.Decode(ref)
		if err != nil {
			return "transaction hash is not 0x-prefixed hex"
		}
		if len(raw) != common.HashLength {
			return fmt.Sprintf("transaction hash must be %d bytes, got %d", common.HashLength, len(raw))
		}
	default:
		if _, err := solana.SignatureFromBase58(ref); err != nil {
			return "transaction signature is not a 64-byte base58 value"
		}
	}
	return ""
}

// matchFamily the first family whose proof prefix matches decides the outcome
func (v *ProofValidator) matchFamily(proof *models.PaymentProof) (string, bool) {
	for _, f := range v.families {
		if !strings.HasPrefix(proof.ProofBlob, f.ProofPrefix) {
			continue
		}
		if f.CommitmentPrefix != "" && !strings.HasPrefix(proof.Commitment, f.CommitmentPrefix) {
			return "", false
		}
		return f.Name, true
	}
	return "", false
}

func invalid(code errs.Code, reason string) ValidationResult {
	return ValidationResult{OK: false, Code: code, Reason: reason}
}
