// Package location tags an Item with the Kentucky county (or counties) it
// covers, using a closed gazetteer rather than any NLP/geocoding service —
// the pack has no library for this kind of closed-list lookup, so this
// package is stdlib-only by design (regexp/strings), not by oversight.
package location

import (
	_ "embed"
	"encoding/json"
	"regexp"
	"strings"

	"kybuzz/internal/domain/entity"
)

//go:embed gazetteer.json
var gazetteerJSON []byte

type gazetteer struct {
	Counties    []string          `json:"counties"`
	CityToCounty map[string]string `json:"city_to_county"`
}

var (
	gaz          gazetteer
	countySet    map[string]bool
	countyRegex  *regexp.Regexp
	kyContextRe  = regexp.MustCompile(`(?i)\bkentucky\b|\bky\b`)
	otherStateRe = regexp.MustCompile(`(?i)\b(ohio|indiana|tennessee|virginia|west virginia|illinois|missouri|alabama|georgia|florida|texas|california|new york)\b`)
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9\s]+`)
)

func init() {
	if err := json.Unmarshal(gazetteerJSON, &gaz); err != nil {
		panic("location: invalid embedded gazetteer: " + err.Error())
	}
	countySet = make(map[string]bool, len(gaz.Counties))
	for _, c := range gaz.Counties {
		countySet[strings.ToLower(c)] = true
	}
	countyRegex = regexp.MustCompile(`(?i)\b([A-Za-z]+)\s+County\b`)
}

// AllCounties returns the gazetteer's full list of Kentucky counties, used
// by the Bing-Fallback Seeder (C14) and the Alerting usecase's coverage-gap
// detector (C12) to enumerate counties that might have no coverage at all.
func AllCounties() []string {
	out := make([]string, len(gaz.Counties))
	copy(out, gaz.Counties)
	return out
}

// maxBodyScanChars bounds how much normalized body text is scanned, per
// spec.md §4.4's ~3500 character cap.
const maxBodyScanChars = 3500

// Input carries everything the tagger needs to decide an Item's counties.
type Input struct {
	Title         string
	BodyText      string
	FeedStateCode string
	RegionScope   entity.RegionScope
	DefaultCounty string
	IsFacebook    bool
}

// Tag is a single (state_code, county) assignment. County is "" for a
// state-level (statewide) tag.
type Tag struct {
	StateCode string
	County    string
}

// Tag computes the set of location tags for in, per spec.md §4.4's five
// detection rules.
func Tag(in Input) []Tag {
	if in.RegionScope != entity.RegionScopeKY && in.RegionScope != "" {
		return nil
	}

	counties := map[string]bool{}

	for _, c := range findTitleCounties(in.Title) {
		counties[c] = true
	}

	if in.DefaultCounty != "" {
		counties[canonicalCounty(in.DefaultCounty)] = true
	}

	if in.IsFacebook {
		return finalize(counties)
	}

	normTitle := normalize(in.Title)
	bodyNorm := normalize(in.BodyText)
	if len(bodyNorm) > maxBodyScanChars {
		bodyNorm = bodyNorm[:maxBodyScanChars]
	}
	leading := bodyNorm
	if len(leading) > 300 {
		leading = leading[:300]
	}

	hasKYSignal := kyContextRe.MatchString(normTitle) || kyContextRe.MatchString(leading)

	if len(counties) == 0 && !hasKYSignal && otherStateRe.MatchString(normTitle+" "+leading) {
		// Competing other-state name with no KY signal: assign nothing new,
		// but any unconditional title-county/default-county tag already
		// collected above still stands.
		return finalize(counties)
	}

	for county, count := range bodyCountyMentionCounts(bodyNorm) {
		if count >= 2 {
			counties[county] = true
		}
	}

	if hasKYSignal {
		for _, county := range cityCountyHits(bodyNorm) {
			counties[county] = true
		}
	}

	return finalize(counties)
}

func finalize(counties map[string]bool) []Tag {
	if len(counties) == 0 {
		return nil
	}
	tags := make([]Tag, 0, len(counties)+1)
	tags = append(tags, Tag{StateCode: "KY", County: ""})
	for county := range counties {
		tags = append(tags, Tag{StateCode: "KY", County: county})
	}
	return tags
}

// findTitleCounties returns canonical county names explicitly named as
// "X County" in title — trusted unconditionally per spec.md §4.4 rule 1.
func findTitleCounties(title string) []string {
	var out []string
	for _, m := range countyRegex.FindAllStringSubmatch(title, -1) {
		name := strings.ToLower(m[1])
		if countySet[name] {
			out = append(out, canonicalCounty(name))
		}
	}
	return out
}

// bodyCountyMentionCounts counts "X County" mentions per county across the
// (already normalized/truncated) body text.
func bodyCountyMentionCounts(body string) map[string]int {
	counts := map[string]int{}
	for _, m := range countyRegex.FindAllStringSubmatch(body, -1) {
		name := strings.ToLower(m[1])
		if countySet[name] {
			counts[canonicalCounty(name)]++
		}
	}
	return counts
}

// cityCountyHits maps recognized city names in body to their county.
func cityCountyHits(body string) []string {
	var out []string
	for city, county := range gaz.CityToCounty {
		if strings.Contains(body, city) {
			out = append(out, county)
		}
	}
	return out
}

func canonicalCounty(lower string) string {
	for _, c := range gaz.Counties {
		if strings.EqualFold(c, lower) {
			return c
		}
	}
	return strings.Title(lower) //nolint:staticcheck // simple ASCII title-casing is sufficient for county names
}

// normalize lowercases and strips punctuation, leaving whitespace-separated
// words — the shape both the county regex and city substring search expect.
func normalize(s string) string {
	s = strings.ToLower(s)
	return nonAlnumRe.ReplaceAllString(s, " ")
}
