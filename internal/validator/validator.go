package validator

import (
	"encoding/hex"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/shopstr-eng/shopstr-cache/internal/adapter"
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/registry"
)

const (
	// DefaultMaxFutureSkew is how far ahead of the local clock a record may be dated
	DefaultMaxFutureSkew = 15 * time.Minute

	idHexLen     = 64
	authorHexLen = 64
	sigHexLen    = 128
)

// Config holds validator configuration
type Config struct {
	// MaxFutureSkew bounds created_at ahead of now; zero uses DefaultMaxFutureSkew
	MaxFutureSkew time.Duration
	// MaxPastAge bounds created_at behind now; zero disables the check
	MaxPastAge time.Duration
}

// Validator checks the structure and signature of inbound records.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	cfg       Config
	blocklist registry.AuthorBlocklist
	clock     adapter.Clock
}

// New creates a new validator. blocklist may be nil.
func New(cfg Config, blocklist registry.AuthorBlocklist, clock adapter.Clock) *Validator {
	if cfg.MaxFutureSkew <= 0 {
		cfg.MaxFutureSkew = DefaultMaxFutureSkew
	}
	return &Validator{
		cfg:       cfg,
		blocklist: blocklist,
		clock:     clock,
	}
}

// Validate returns the record unchanged when it is well-formed, correctly signed
// and inside the accepted time window. Failures are *domain.RejectError.
func (v *Validator) Validate(rec *domain.Record) (*domain.Record, error) {
	if rec == nil {
		return nil, domain.NewRejectError(domain.RejectMalformed, "nil record")
	}

	if rejectErr := checkStructure(rec); rejectErr != nil {
		return nil, rejectErr
	}

	if v.blocklist != nil && v.blocklist.IsBlocked(rec.Author) {
		return nil, domain.NewRejectError(domain.RejectBlockedAuthor, "author %s is blocked", rec.Author)
	}

	if rejectErr := checkSignature(rec); rejectErr != nil {
		return nil, rejectErr
	}

	if rejectErr := v.checkTimestamp(rec); rejectErr != nil {
		return nil, rejectErr
	}

	return rec, nil
}

func checkStructure(rec *domain.Record) *domain.RejectError {
	if !isLowerHex(rec.ID, idHexLen) {
		return domain.NewRejectError(domain.RejectMalformed, "id must be %d lowercase hex characters", idHexLen)
	}
	if !isLowerHex(rec.Author, authorHexLen) {
		return domain.NewRejectError(domain.RejectMalformed, "author must be %d lowercase hex characters", authorHexLen)
	}
	if !isLowerHex(rec.Sig, sigHexLen) {
		return domain.NewRejectError(domain.RejectMalformed, "sig must be %d lowercase hex characters", sigHexLen)
	}
	if rec.Kind < 0 {
		return domain.NewRejectError(domain.RejectMalformed, "negative kind %d", rec.Kind)
	}
	if rec.CreatedAt <= 0 {
		return domain.NewRejectError(domain.RejectMalformed, "missing created_at")
	}
	for i, tag := range rec.Tags {
		if len(tag) == 0 {
			return domain.NewRejectError(domain.RejectMalformed, "tag %d is empty", i)
		}
	}
	if rec.Location != nil && !domain.ValidLocation(*rec.Location) {
		return domain.NewRejectError(domain.RejectMalformed, "location out of range")
	}
	return nil
}

func checkSignature(rec *domain.Record) *domain.RejectError {
	if id := ComputeID(rec); id != rec.ID {
		return domain.NewRejectError(domain.RejectSignature, "id mismatch: computed %s", id)
	}

	// hex was checked by checkStructure
	idBytes, _ := hex.DecodeString(rec.ID)
	pubBytes, _ := hex.DecodeString(rec.Author)
	sigBytes, _ := hex.DecodeString(rec.Sig)

	pubKey, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return domain.NewRejectError(domain.RejectSignature, "invalid author key: %v", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return domain.NewRejectError(domain.RejectSignature, "invalid signature encoding: %v", err)
	}
	if !sig.Verify(idBytes, pubKey) {
		return domain.NewRejectError(domain.RejectSignature, "signature does not verify")
	}
	return nil
}

func (v *Validator) checkTimestamp(rec *domain.Record) *domain.RejectError {
	now := v.clock.Now()
	created := rec.Time()

	if created.After(now.Add(v.cfg.MaxFutureSkew)) {
		return domain.NewRejectError(domain.RejectTimestamp, "created_at %d is more than %s ahead", rec.CreatedAt, v.cfg.MaxFutureSkew)
	}
	if v.cfg.MaxPastAge > 0 && created.Before(now.Add(-v.cfg.MaxPastAge)) {
		return domain.NewRejectError(domain.RejectTimestamp, "created_at %d is older than %s", rec.CreatedAt, v.cfg.MaxPastAge)
	}
	return nil
}

func isLowerHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
