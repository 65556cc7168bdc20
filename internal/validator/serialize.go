package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
)

// Serialize returns the canonical byte form a record id is computed over:
// [0,"<author>",<created_at>,<kind>,<tags>,"<content>"] with no whitespace.
func Serialize(rec *domain.Record) []byte {
	var b strings.Builder
	b.Grow(128 + len(rec.Content))

	b.WriteString(`[0,"`)
	b.WriteString(rec.Author)
	b.WriteString(`",`)
	b.WriteString(strconv.FormatInt(rec.CreatedAt, 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(int(rec.Kind)))
	b.WriteString(",[")
	for i, tag := range rec.Tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, v := range tag {
			if j > 0 {
				b.WriteByte(',')
			}
			writeString(&b, v)
		}
		b.WriteByte(']')
	}
	b.WriteString("],")
	writeString(&b, rec.Content)
	b.WriteByte(']')

	return []byte(b.String())
}

// writeString writes s as a JSON string escaping only what the id format requires
func writeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if c < 0x20 {
				fmt.Fprintf(b, `\u%04x`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
}

// ComputeID returns the hex sha256 of the canonical serialization
func ComputeID(rec *domain.Record) string {
	sum := sha256.Sum256(Serialize(rec))
	return hex.EncodeToString(sum[:])
}

// Sign fills in the author, id and signature of rec using key.
// Sources never call this; it exists for fixtures and tooling.
func Sign(rec *domain.Record, key *btcec.PrivateKey) error {
	rec.Author = hex.EncodeToString(schnorr.SerializePubKey(key.PubKey()))
	rec.ID = ComputeID(rec)

	idBytes, err := hex.DecodeString(rec.ID)
	if err != nil {
		return fmt.Errorf("failed to decode id: %w", err)
	}

	sig, err := schnorr.Sign(key, idBytes)
	if err != nil {
		return fmt.Errorf("failed to sign record: %w", err)
	}
	rec.Sig = hex.EncodeToString(sig.Serialize())

	return nil
}
