// Package dedup computes MinHash signatures over an Item's title+summary
// and finds near-duplicate Items within a recent sliding window. No library
// in the example pack implements MinHash/SimHash/shingling, so this package
// is stdlib-only (hash/fnv) by documented exception, not by default.
package dedup

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// NumHashes is the number of independent FNV-1a variants in a Signature,
// per spec.md §4.5.
const NumHashes = 16

// DuplicateThreshold is the minimum Jaccard estimate (matching positions /
// NumHashes) to call two items duplicates.
const DuplicateThreshold = 0.72

// WindowHours bounds how far back the sliding comparison window reaches.
const WindowHours = 48

// MaxScanCandidates caps how many recent candidates are compared per item.
const MaxScanCandidates = 500

// seeds are the per-hash FNV-1a seeding constants. Distinct, arbitrary, and
// fixed so signatures are stable across runs.
var seeds = [NumHashes]uint64{
	0x9e3779b97f4a7c15, 0xc2b2ae3d27d4eb4f, 0x165667b19e3779f9, 0x27d4eb2f165667c5,
	0x85ebca6b27d4eb2f, 0xc2b2ae35165667b1, 0xff51afd7ed558ccd, 0xc4ceb9fe1a85ec53,
	0x2545f4914f6cdd1d, 0x9e3779b185ebca87, 0xbf58476d1ce4e5b9, 0x94d049bb133111eb,
	0xd6e8feb86659fd93, 0xa5026f6dae85a9f1, 0xff51afd7ed558cd1, 0xc4ceb9fe1a85ec13,
}

var (
	nonWordRe = regexp.MustCompile(`[^a-z0-9\s]+`)
	stopwords = buildStopwords()
)

func buildStopwords() map[string]bool {
	words := []string{
		"the", "and", "for", "are", "but", "not", "you", "all", "can", "her",
		"was", "one", "our", "out", "day", "get", "has", "him", "his", "how",
		"man", "new", "now", "old", "see", "two", "way", "who", "boy", "did",
		"its", "let", "put", "say", "she", "too", "use", "with", "that",
		"this", "from", "have", "will", "been", "were", "than", "them",
		"into", "over", "after", "about", "when", "what", "then", "more",
		"some", "also",
	}
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// Signature is a 16-hash MinHash fingerprint.
type Signature [NumHashes]uint64

// String encodes sig as 128 hex characters (16 hashes x 8 bytes).
func (sig Signature) String() string {
	var sb strings.Builder
	for _, h := range sig {
		fmt.Fprintf(&sb, "%016x", h)
	}
	return sb.String()
}

// Parse decodes a 128-hex-char string produced by Signature.String.
func Parse(s string) (Signature, error) {
	var sig Signature
	if len(s) != NumHashes*16 {
		return sig, fmt.Errorf("dedup: signature must be %d hex chars, got %d", NumHashes*16, len(s))
	}
	for i := 0; i < NumHashes; i++ {
		chunk := s[i*16 : i*16+16]
		b, err := hex.DecodeString(chunk)
		if err != nil {
			return sig, fmt.Errorf("dedup: invalid signature chunk %d: %w", i, err)
		}
		var v uint64
		for _, bb := range b {
			v = v<<8 | uint64(bb)
		}
		sig[i] = v
	}
	return sig, nil
}

// Compute derives a Signature from title and summary, per spec.md §4.5:
// tokenize title + first 200 chars of summary, lowercase, strip
// non-alphanumerics, drop tokens of length <= 2 and stopwords, then take the
// per-hash minimum FNV-1a value over the remaining token set.
func Compute(title, summary string) Signature {
	if len(summary) > 200 {
		summary = summary[:200]
	}
	tokens := tokenize(title + " " + summary)

	var sig Signature
	for i := range sig {
		sig[i] = math.MaxUint64
	}
	if len(tokens) == 0 {
		return sig
	}

	for _, tok := range tokens {
		for i, seed := range seeds {
			h := hashToken(tok, seed)
			if h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

func tokenize(s string) []string {
	s = strings.ToLower(s)
	s = nonWordRe.ReplaceAllString(s, " ")
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= 2 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func hashToken(tok string, seed uint64) uint64 {
	h := fnv.New64a()
	var seedBytes [8]byte
	for i := 0; i < 8; i++ {
		seedBytes[i] = byte(seed >> (8 * i))
	}
	_, _ = h.Write(seedBytes[:])
	_, _ = h.Write([]byte(tok))
	return h.Sum64()
}

// Jaccard estimates set similarity between two signatures as the fraction of
// matching per-hash positions.
func Jaccard(a, b Signature) float64 {
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(NumHashes)
}

// Candidate is a recent item eligible for duplicate comparison.
type Candidate struct {
	ItemID      string
	Signature   Signature
	PublishedAt *int64 // unix seconds, nil if unknown; used only to break ties
}

// Store abstracts the sliding-window scan so the dedup engine stays
// DB-agnostic; the sqlite repository implements this against
// ItemRepository.RecentWithSignature.
type Store interface {
	RecentCandidates(ctx context.Context, excludeItemID string) ([]Candidate, error)
}

// Match is the best duplicate candidate found for an item, if any.
type Match struct {
	CanonicalItemID string
	Score           float64
}

// FindDuplicate compares sig for itemID against the store's recent window
// and returns the best match at or above DuplicateThreshold, or (nil, nil)
// if no candidate qualifies. Ties are broken by most recent PublishedAt.
func FindDuplicate(ctx context.Context, store Store, itemID string, sig Signature) (*Match, error) {
	candidates, err := store.RecentCandidates(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("dedup: scan candidates: %w", err)
	}
	if len(candidates) > MaxScanCandidates {
		candidates = candidates[:MaxScanCandidates]
	}

	var best *Candidate
	var bestScore float64
	for i := range candidates {
		c := &candidates[i]
		score := Jaccard(sig, c.Signature)
		if score < DuplicateThreshold {
			continue
		}
		if best == nil || score > bestScore || (score == bestScore && isNewer(c, best)) {
			best = c
			bestScore = score
		}
	}
	if best == nil {
		return nil, nil
	}
	return &Match{CanonicalItemID: best.ItemID, Score: bestScore}, nil
}

func isNewer(a, b *Candidate) bool {
	if a.PublishedAt == nil {
		return false
	}
	if b.PublishedAt == nil {
		return true
	}
	return *a.PublishedAt > *b.PublishedAt
}
