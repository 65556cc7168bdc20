package registry

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopstr-eng/shopstr-cache/internal/adapter"
)

// AuthorBlocklist defines the interface for author blocklist lookups
//
//go:generate mockgen -source=blocklist.go -destination=../mocks/author_blocklist.go -package=mocks -mock_names=AuthorBlocklist=MockAuthorBlocklist
type AuthorBlocklist interface {
	// IsBlocked checks if records signed by author must be dropped
	IsBlocked(author string) bool

	// Len returns the number of blocked authors
	Len() int
}

// BlocklistData represents the structure of the blocklist JSON file
type BlocklistData struct {
	Authors []string `json:"authors"`
}

// authorBlocklist is the internal implementation of AuthorBlocklist
type authorBlocklist struct {
	authors map[string]struct{}
}

// BlocklistLoader loads author blocklists from disk
type BlocklistLoader struct {
	fs   adapter.FileSystem
	json adapter.JSON
}

// NewBlocklistLoader creates a new blocklist loader
func NewBlocklistLoader(fs adapter.FileSystem, json adapter.JSON) *BlocklistLoader {
	return &BlocklistLoader{fs: fs, json: json}
}

// Load reads and indexes the blocklist at filePath. Entries must be 32-byte hex keys.
func (l *BlocklistLoader) Load(filePath string) (AuthorBlocklist, error) {
	data, err := l.fs.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read blocklist file: %w", err)
	}

	var blocklistData BlocklistData
	if err := l.json.Unmarshal(data, &blocklistData); err != nil {
		return nil, fmt.Errorf("failed to parse blocklist JSON: %w", err)
	}

	return NewAuthorBlocklist(blocklistData.Authors)
}

// NewAuthorBlocklist builds a blocklist from hex-encoded author keys
func NewAuthorBlocklist(authors []string) (AuthorBlocklist, error) {
	bl := &authorBlocklist{authors: make(map[string]struct{}, len(authors))}
	for _, author := range authors {
		normalized := strings.ToLower(strings.TrimSpace(author))
		if b, err := hex.DecodeString(normalized); err != nil || len(b) != 32 {
			return nil, fmt.Errorf("invalid author key in blocklist: %q", author)
		}
		bl.authors[normalized] = struct{}{}
	}
	return bl, nil
}

// IsBlocked checks if records signed by author must be dropped
func (b *authorBlocklist) IsBlocked(author string) bool {
	if b == nil {
		return false
	}
	_, ok := b.authors[strings.ToLower(author)]
	return ok
}

// Len returns the number of blocked authors
func (b *authorBlocklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.authors)
}
