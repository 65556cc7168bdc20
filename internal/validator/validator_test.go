package validator_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/golang/mock/gomock"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/mocks"
	"github.com/shopstr-eng/shopstr-cache/internal/registry"
	"github.com/shopstr-eng/shopstr-cache/internal/validator"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return key
}

func signedRecord(t *testing.T, key *btcec.PrivateKey, createdAt time.Time) *domain.Record {
	t.Helper()
	rec := &domain.Record{
		Kind:      domain.KindProduct,
		CreatedAt: createdAt.Unix(),
		Tags: [][]string{
			{"d", "widget"},
			{"price", "12.50", "USD"},
		},
		Content: "a \"fine\" widget\n",
	}
	require.NoError(t, validator.Sign(rec, key))
	return rec
}

func newValidator(t *testing.T, cfg validator.Config, blocklist registry.AuthorBlocklist) *validator.Validator {
	ctrl := gomock.NewController(t)
	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(now).AnyTimes()
	return validator.New(cfg, blocklist, clock)
}

func rejectReason(t *testing.T, err error) domain.RejectReason {
	t.Helper()
	var rejectErr *domain.RejectError
	require.True(t, errors.As(err, &rejectErr), "expected RejectError, got %v", err)
	return rejectErr.Reason
}

func TestSerialize(t *testing.T) {
	rec := &domain.Record{
		Author:    strings.Repeat("a", 64),
		CreatedAt: 1700000000,
		Kind:      1,
		Tags:      [][]string{{"e", "x"}, {"t", "tab\there"}},
		Content:   "hi\n\"q\"\\",
	}

	expected := `[0,"` + strings.Repeat("a", 64) + `",1700000000,1,[["e","x"],["t","tab\there"]],"hi\n\"q\"\\"]`
	assert.Equal(t, expected, string(validator.Serialize(rec)))

	empty := &domain.Record{Author: "ab", CreatedAt: 1, Kind: 0}
	assert.Equal(t, `[0,"ab",1,0,[],""]`, string(validator.Serialize(empty)))

	ctrl := &domain.Record{Author: "ab", CreatedAt: 1, Content: "\x01"}
	assert.Equal(t, `[0,"ab",1,0,[],"\u0001"]`, string(validator.Serialize(ctrl)))
}

func TestValidate_Accepts(t *testing.T) {
	v := newValidator(t, validator.Config{}, nil)
	rec := signedRecord(t, newKey(t), now.Add(-time.Hour))

	got, err := v.Validate(rec)
	require.NoError(t, err)
	assert.Same(t, rec, got)
}

func TestValidate_Rejects(t *testing.T) {
	key := newKey(t)
	other := newKey(t)

	tests := []struct {
		name     string
		mutate   func(rec *domain.Record)
		cfg      validator.Config
		expected domain.RejectReason
		sentinel error
	}{
		{
			name:     "short id",
			mutate:   func(rec *domain.Record) { rec.ID = rec.ID[:10] },
			expected: domain.RejectMalformed,
			sentinel: domain.ErrMalformedRecord,
		},
		{
			name:     "uppercase author",
			mutate:   func(rec *domain.Record) { rec.Author = strings.ToUpper(rec.Author) },
			expected: domain.RejectMalformed,
			sentinel: domain.ErrMalformedRecord,
		},
		{
			name:     "missing signature",
			mutate:   func(rec *domain.Record) { rec.Sig = "" },
			expected: domain.RejectMalformed,
			sentinel: domain.ErrMalformedRecord,
		},
		{
			name:     "negative kind",
			mutate:   func(rec *domain.Record) { rec.Kind = -1 },
			expected: domain.RejectMalformed,
			sentinel: domain.ErrMalformedRecord,
		},
		{
			name:     "zero created_at",
			mutate:   func(rec *domain.Record) { rec.CreatedAt = 0 },
			expected: domain.RejectMalformed,
			sentinel: domain.ErrMalformedRecord,
		},
		{
			name:     "empty tag",
			mutate:   func(rec *domain.Record) { rec.Tags = append(rec.Tags, []string{}) },
			expected: domain.RejectMalformed,
			sentinel: domain.ErrMalformedRecord,
		},
		{
			name:     "location out of range",
			mutate:   func(rec *domain.Record) { rec.Location = &orb.Point{200, 10} },
			expected: domain.RejectMalformed,
			sentinel: domain.ErrMalformedRecord,
		},
		{
			name:     "tampered content",
			mutate:   func(rec *domain.Record) { rec.Content = "a cheaper widget" },
			expected: domain.RejectSignature,
			sentinel: domain.ErrSignatureInvalid,
		},
		{
			name: "signature by another key",
			mutate: func(rec *domain.Record) {
				author := rec.Author
				require.NoError(t, validator.Sign(rec, other))
				rec.Author = author
				rec.ID = validator.ComputeID(rec)
			},
			expected: domain.RejectSignature,
			sentinel: domain.ErrSignatureInvalid,
		},
		{
			name: "flipped signature byte",
			mutate: func(rec *domain.Record) {
				last := rec.Sig[len(rec.Sig)-1]
				flipped := byte('0')
				if last == '0' {
					flipped = '1'
				}
				rec.Sig = rec.Sig[:len(rec.Sig)-1] + string(flipped)
			},
			expected: domain.RejectSignature,
			sentinel: domain.ErrSignatureInvalid,
		},
		{
			name: "too far in the future",
			mutate: func(rec *domain.Record) {
				rec.CreatedAt = now.Add(time.Hour).Unix()
				require.NoError(t, validator.Sign(rec, key))
			},
			expected: domain.RejectTimestamp,
			sentinel: domain.ErrTimestampOutOfRange,
		},
		{
			name: "older than max past age",
			mutate: func(rec *domain.Record) {
				rec.CreatedAt = now.Add(-48 * time.Hour).Unix()
				require.NoError(t, validator.Sign(rec, key))
			},
			cfg:      validator.Config{MaxPastAge: 24 * time.Hour},
			expected: domain.RejectTimestamp,
			sentinel: domain.ErrTimestampOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidator(t, tt.cfg, nil)
			rec := signedRecord(t, key, now.Add(-time.Minute))
			tt.mutate(rec)

			got, err := v.Validate(rec)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.Equal(t, tt.expected, rejectReason(t, err))
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestValidate_FutureSkewWithinWindow(t *testing.T) {
	v := newValidator(t, validator.Config{MaxFutureSkew: 5 * time.Minute}, nil)
	rec := signedRecord(t, newKey(t), now.Add(4*time.Minute))

	_, err := v.Validate(rec)
	assert.NoError(t, err)

	late := signedRecord(t, newKey(t), now.Add(6*time.Minute))
	_, err = v.Validate(late)
	assert.ErrorIs(t, err, domain.ErrTimestampOutOfRange)
}

func TestValidate_BlockedAuthor(t *testing.T) {
	key := newKey(t)
	rec := signedRecord(t, key, now)

	blocklist, err := registry.NewAuthorBlocklist([]string{rec.Author})
	require.NoError(t, err)

	v := newValidator(t, validator.Config{}, blocklist)
	_, err = v.Validate(rec)
	require.Error(t, err)
	assert.Equal(t, domain.RejectBlockedAuthor, rejectReason(t, err))

	_, err = v.Validate(signedRecord(t, newKey(t), now))
	assert.NoError(t, err)
}

func TestValidate_NilRecord(t *testing.T) {
	v := newValidator(t, validator.Config{}, nil)
	_, err := v.Validate(nil)
	assert.ErrorIs(t, err, domain.ErrMalformedRecord)
}
