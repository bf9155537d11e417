// Package paywall scores an article's likelihood of being paywalled from
// multiple weak signals, per spec.md §4.6. No pack library does this kind of
// accumulative heuristic scoring, so the decision logic is plain Go; HTML
// inspection reuses goquery the way feedparse's ScrapeParser already does.
package paywall

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

//go:embed domains.json
var domainsJSON []byte

type domainLists struct {
	KnownFree     []string `json:"known_free"`
	KnownPaywall  []string `json:"known_paywall"`
	CSSTokens     []string `json:"css_tokens"`
	TextFragments []string `json:"text_fragments"`
}

var (
	lists        domainLists
	knownFreeSet map[string]bool
	knownPaySet  map[string]bool
)

func init() {
	if err := json.Unmarshal(domainsJSON, &lists); err != nil {
		panic("paywall: invalid embedded domains.json: " + err.Error())
	}
	knownFreeSet = toSet(lists.KnownFree)
	knownPaySet = toSet(lists.KnownPaywall)
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = true
	}
	return set
}

const (
	scoreKnownPaywallDomain = 40
	scoreJSONLDNotFree      = 35
	scoreCSSTokenEach       = 10
	scoreCSSTokenCap        = 30
	scoreFragmentEach       = 15
	scoreFragmentCap        = 40
	scoreShortBody          = 15
	decisionThreshold       = 60
	maxConfidence           = 100
)

// the three literal JSON-LD forms spec.md §4.6 calls out: bare false, the
// string "false", and schema.org's explicit non-free URL.
var jsonLDNotFreeNeedles = []string{
	`"isaccessibleforfree":false`,
	`"isaccessibleforfree":"false"`,
	`"isaccessibleforfree":"http://schema.org/false"`,
}

// Input carries everything the scorer needs to evaluate one article.
type Input struct {
	Domain   string
	RawHTML  string
	BodyText string
	WordCount int
}

// Result is the scored outcome, retained in full for audit per spec.md §4.6.
type Result struct {
	IsPaywalled bool
	Confidence  int
	Signals     []string
}

// Score evaluates in against the known-domain lists, JSON-LD markup, CSS
// tokens, and text fragments, per spec.md §4.6's accumulative, capped
// scoring rules.
func Score(in Input) Result {
	domain := strings.ToLower(strings.TrimPrefix(in.Domain, "www."))
	if knownFreeSet[domain] {
		return Result{IsPaywalled: false, Confidence: 0}
	}

	var signals []string
	confidence := 0

	if knownPaySet[domain] {
		confidence += scoreKnownPaywallDomain
		signals = append(signals, "known_paywall_domain")
	}

	lowerHTML := strings.ToLower(in.RawHTML)
	if hasJSONLDNotFree(lowerHTML) {
		confidence += scoreJSONLDNotFree
		signals = append(signals, "jsonld_not_free")
	}

	cssHits := 0
	for _, tok := range lists.CSSTokens {
		if strings.Contains(lowerHTML, strings.ToLower(tok)) {
			cssHits++
		}
	}
	if cssHits > 0 {
		add := cssHits * scoreCSSTokenEach
		if add > scoreCSSTokenCap {
			add = scoreCSSTokenCap
		}
		confidence += add
		signals = append(signals, "css_token_match")
	}

	combined := lowerHTML + " " + strings.ToLower(in.BodyText)
	fragHits := 0
	for _, frag := range lists.TextFragments {
		if strings.Contains(combined, strings.ToLower(frag)) {
			fragHits++
		}
	}
	if fragHits > 0 {
		add := fragHits * scoreFragmentEach
		if add > scoreFragmentCap {
			add = scoreFragmentCap
		}
		confidence += add
		signals = append(signals, "text_fragment_match")
	}

	if in.WordCount > 0 && in.WordCount < 80 {
		confidence += scoreShortBody
		signals = append(signals, "short_body")
	}

	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	return Result{
		IsPaywalled: confidence >= decisionThreshold,
		Confidence:  confidence,
		Signals:     signals,
	}
}

func hasJSONLDNotFree(lowerHTML string) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(lowerHTML)))
	if err != nil {
		return containsAny(lowerHTML, jsonLDNotFreeNeedles)
	}
	found := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		compact := stripWhitespace(s.Text())
		if containsAny(compact, jsonLDNotFreeNeedles) {
			found = true
			return false
		}
		return true
	})
	return found
}

func stripWhitespace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
