package entity

import "time"

// AlertLevel is the breaking-news urgency tier assigned by the Breaking
// Classifier (C7). The zero value means "not breaking."
type AlertLevel string

const (
	AlertLevelEmergency  AlertLevel = "emergency"
	AlertLevelBreaking   AlertLevel = "breaking"
	AlertLevelDeveloping AlertLevel = "developing"
)

// Sentiment is the polarity assigned by the Breaking Classifier's
// keyword-hit sentiment pass.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Item is a single normalized article record. Its ID is derived: a stable
// hash of {URL, GUID, Title, PublishedAt}, so re-ingesting the same
// (url, guid, title) tuple always resolves to the same row.
type Item struct {
	ID          string
	Title       string
	URL         string
	GUID        string
	Author      string
	RegionScope RegionScope
	PublishedAt *time.Time
	FetchedAt   time.Time

	Summary  string
	Content  string
	ImageURL string
	BodyText string
	WordCount int

	// Hash is the content fingerprint used by the Orchestrator's upsert
	// contract to detect unchanged re-ingestion (spec §4.9 step 4).
	Hash string

	// Enrichment columns, written by the Enrichment Worker (C10).
	MinHash              string
	IsDuplicate          bool
	CanonicalItemID      string
	IsPaywalled          bool
	PaywallConfidence    int
	PaywallSignals       []string
	PaywallDeprioritized bool
	IsBreaking           bool
	AlertLevel           AlertLevel
	Sentiment            Sentiment
	BreakingExpiresAt    *time.Time
	AISummary            string
	AIMetaDescription    string
	CategoriesJSON       string
	IsFacebook           bool
	Tags                 []string
}

// ActiveBreaking reports whether the item's breaking-news boost is still in
// effect at the given instant (spec §8 invariant: "no query returns
// is_breaking=1 priority boost for an item where breaking_expires_at < now").
func (it *Item) ActiveBreaking(now time.Time) bool {
	if !it.IsBreaking || it.BreakingExpiresAt == nil {
		return false
	}
	return !it.BreakingExpiresAt.Before(now)
}

// Validate enforces the cross-field invariants of spec §3.
func (it *Item) Validate() error {
	if err := ValidateURL(it.URL); err != nil {
		return err
	}
	if it.IsDuplicate && (it.CanonicalItemID == "" || it.CanonicalItemID == it.ID) {
		return &ValidationError{Field: "canonical_item_id", Message: "duplicate items must reference a distinct canonical item"}
	}
	if it.IsBreaking && it.BreakingExpiresAt == nil {
		return &ValidationError{Field: "breaking_expires_at", Message: "breaking items must carry an expiry"}
	}
	if it.PaywallDeprioritized && !(it.IsPaywalled && it.IsDuplicate) {
		return &ValidationError{Field: "paywall_deprioritized", Message: "deprioritization requires paywalled and duplicate"}
	}
	return nil
}
