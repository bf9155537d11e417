package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// trackingParamPrefixes strips the common campaign/analytics query params a
// publisher's CMS appends; anything else on the query string is preserved
// since it may be load-bearing (e.g. a page index).
var trackingParamPrefixes = []string{
	"utm_", "fbclid", "gclid", "mc_cid", "mc_eid", "ref", "ref_src", "__twitter_impression",
}

// CanonicalizeURL strips tracking params, trailing slash, and fragment from
// rawURL so the same article reached via different campaign links resolves
// to one Item (spec.md §3).
func CanonicalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("ingest: canonicalize url: %w", err)
	}
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if isTrackingParam(key) {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String(), nil
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	for _, prefix := range trackingParamPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// DeriveID computes the stable Item ID from {url, guid, title, published_at}
// per spec.md §3, so re-ingesting the same tuple always resolves to the same
// row regardless of which feed it arrived through.
func DeriveID(canonicalURL, guid, title string, publishedAt *time.Time) string {
	var publishedKey string
	if publishedAt != nil {
		publishedKey = publishedAt.UTC().Format(time.RFC3339)
	}
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s", canonicalURL, guid, title, publishedKey)
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeHash fingerprints the mutable content fields, in the order given,
// so the Orchestrator's upsert contract (spec.md §4.9 step 4) can detect
// unchanged re-ingestion without comparing every column.
func ComputeHash(fields ...string) string {
	h := sha256.New()
	for _, f := range fields {
		_, _ = h.Write([]byte(f))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
