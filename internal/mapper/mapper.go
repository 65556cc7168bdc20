package mapper

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
)

// extractFunc builds the class-specific entity on top of a populated header
type extractFunc func(rec *domain.Record, h domain.EntityHeader) (domain.Entity, error)

// schema binds a record kind to the entity class it produces
type schema struct {
	class   domain.EntityClass
	extract extractFunc
}

// Mapper projects validated records onto the fixed entity schemas.
// The registry is built once and never mutated, so a Mapper is safe for concurrent use.
type Mapper struct {
	schemas map[domain.Kind]schema
}

// New creates a mapper with the built-in kind registry
func New() *Mapper {
	return &Mapper{
		schemas: map[domain.Kind]schema{
			domain.KindUserMetadata: {class: domain.ClassUser, extract: extractUser},
			domain.KindProduct:      {class: domain.ClassProduct, extract: extractProduct},
			domain.KindListing:      {class: domain.ClassListing, extract: extractListing},
			domain.KindDirectMsg:    {class: domain.ClassMessage, extract: extractMessage},
			domain.KindChatMsg:      {class: domain.ClassMessage, extract: extractMessage},
			domain.KindCustomer:     {class: domain.ClassCustomer, extract: extractCustomer},
			domain.KindShopper:      {class: domain.ClassShopper, extract: extractShopper},
			domain.KindInquiry:      {class: domain.ClassInquiry, extract: extractInquiry},
			domain.KindTransaction:  {class: domain.ClassTransaction, extract: extractTransaction},
			domain.KindReview:       {class: domain.ClassReview, extract: extractReview},
		},
	}
}

// ClassOf returns the entity class registered for a kind
func (m *Mapper) ClassOf(kind domain.Kind) (domain.EntityClass, bool) {
	s, ok := m.schemas[kind]
	return s.class, ok
}

// KindsFor returns the record kinds that map to class, in ascending order
func (m *Mapper) KindsFor(class domain.EntityClass) []domain.Kind {
	var kinds []domain.Kind
	for kind, s := range m.schemas {
		if s.class == class {
			kinds = append(kinds, kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Map projects rec onto its entity schema. It returns an error wrapping
// domain.ErrUnknownKind for unregistered kinds and a *domain.SchemaViolationError
// naming the offending field when extraction fails.
func (m *Mapper) Map(rec *domain.Record) (domain.Entity, error) {
	if rec == nil {
		return nil, &domain.SchemaViolationError{Field: "record", Detail: "nil record"}
	}

	s, ok := m.schemas[rec.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownKind, rec.Kind)
	}

	location, err := resolveLocation(rec)
	if err != nil {
		return nil, err
	}

	payload, hash, err := buildPayload(rec)
	if err != nil {
		return nil, err
	}

	header := domain.EntityHeader{
		Time:        rec.Time(),
		RecordID:    rec.ID,
		Author:      rec.Author,
		Kind:        rec.Kind,
		Location:    location,
		Payload:     payload,
		ContentHash: hash,
	}

	return s.extract(rec, header)
}

// payloadDoc is the stored JSON form of a record's content and tags
type payloadDoc struct {
	Content string     `json:"content"`
	Tags    [][]string `json:"tags"`
}

// buildPayload returns the stored payload and the sha256 of its RFC 8785 canonical form
func buildPayload(rec *domain.Record) (json.RawMessage, string, error) {
	tags := rec.Tags
	if tags == nil {
		tags = [][]string{}
	}

	raw, err := json.Marshal(payloadDoc{Content: rec.Content, Tags: tags})
	if err != nil {
		return nil, "", &domain.SchemaViolationError{Kind: rec.Kind, Field: "payload", Detail: err.Error()}
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, "", &domain.SchemaViolationError{Kind: rec.Kind, Field: "payload", Detail: err.Error()}
	}

	return raw, ContentHash(canonical), nil
}

// ContentHash returns the hex sha256 of canonical payload bytes
func ContentHash(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

func violation(rec *domain.Record, field, format string, args ...interface{}) error {
	return &domain.SchemaViolationError{Kind: rec.Kind, Field: field, Detail: fmt.Sprintf(format, args...)}
}
