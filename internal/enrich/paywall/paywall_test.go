package paywall

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_KnownFreeDomainShortCircuits(t *testing.T) {
	result := Score(Input{
		Domain:  "kentuckylantern.com",
		RawHTML: `<div class="paywall">subscribe to continue reading</div>`,
	})
	assert.False(t, result.IsPaywalled)
	assert.Equal(t, 0, result.Confidence)
	assert.Empty(t, result.Signals)
}

func TestScore_KnownPaywallDomainAlone(t *testing.T) {
	result := Score(Input{Domain: "www.kentucky.com", RawHTML: "<html></html>"})
	assert.Equal(t, 40, result.Confidence)
	assert.False(t, result.IsPaywalled)
	assert.Contains(t, result.Signals, "known_paywall_domain")
}

func TestScore_JSONLDNotFree(t *testing.T) {
	html := `<script type="application/ld+json">{"isAccessibleForFree": false}</script>`
	result := Score(Input{Domain: "example.com", RawHTML: html})
	assert.Equal(t, 35, result.Confidence)
	assert.Contains(t, result.Signals, "jsonld_not_free")
}

func TestScore_CSSTokensCapAt30(t *testing.T) {
	html := `<div class="paywall subscriber-only tp-modal pw-overlay regwall"></div>`
	result := Score(Input{Domain: "example.com", RawHTML: html})
	assert.Equal(t, scoreCSSTokenCap, result.Confidence)
}

func TestScore_TextFragmentsCapAt40(t *testing.T) {
	body := "subscribe to continue reading. subscribe to read. you have reached your article limit. to continue reading this article."
	result := Score(Input{Domain: "example.com", BodyText: body})
	assert.Equal(t, scoreFragmentCap, result.Confidence)
}

func TestScore_ShortBodyAdds15(t *testing.T) {
	result := Score(Input{Domain: "example.com", WordCount: 40})
	assert.Equal(t, scoreShortBody, result.Confidence)
}

func TestScore_AccumulatesAndDecidesAtThreshold(t *testing.T) {
	result := Score(Input{
		Domain:    "www.kentucky.com",
		RawHTML:   `<script type="application/ld+json">{"isAccessibleForFree": false}</script>`,
		WordCount: 50,
	})
	// 40 (domain) + 35 (json-ld) + 15 (short body) = 90, capped at 100, decides true.
	assert.Equal(t, 90, result.Confidence)
	assert.True(t, result.IsPaywalled)
}

func TestScore_CapsAt100(t *testing.T) {
	html := `<script type="application/ld+json">{"isAccessibleForFree": false}</script>` +
		`<div class="paywall subscriber-only tp-modal"></div>`
	body := "subscribe to continue reading. subscribe to read. you have reached your article limit. to continue reading this article."
	result := Score(Input{Domain: "www.kentucky.com", RawHTML: html, BodyText: body, WordCount: 10})
	assert.Equal(t, maxConfidence, result.Confidence)
	assert.True(t, result.IsPaywalled)
}

func TestScore_BelowThresholdNotPaywalled(t *testing.T) {
	result := Score(Input{Domain: "example.com", WordCount: 40})
	assert.Less(t, result.Confidence, decisionThreshold)
	assert.False(t, result.IsPaywalled)
}
