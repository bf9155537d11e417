// Package breaking classifies an item's urgency and sentiment from its
// title and body text via a fixed regex priority ladder, per spec.md §4.7.
// Stdlib regexp only: the ladder and keyword-hit sentiment counting are the
// algorithm the spec itself specifies, not a stdlib stand-in for a missing
// library.
package breaking

import (
	"regexp"
	"time"

	"kybuzz/internal/domain/entity"
)

const leadingBodyChars = 500
const expiryDuration = 4 * time.Hour

var (
	emergencyRe  = regexp.MustCompile(`(?i)\b(tornado warning|flash flood emergency|evacuat\w*|state of emergency|mandatory evacuation|amber alert|active shooter|shelter[- ]in[- ]place)\b`)
	breakingRe   = regexp.MustCompile(`(?i)\bbreaking\b`)
	developingRe = regexp.MustCompile(`(?i)\b(developing story|developing now|more to come|updates? to follow|officials (?:say|confirm)|ongoing (?:investigation|situation))\b`)
	officialRe   = regexp.MustCompile(`(?i)\b(national weather service|kyem|fema|kentucky state police|ky state police|kentucky emergency management)\b`)

	negativeRe = regexp.MustCompile(`(?i)\b(dead|death|died|killed|injur\w*|fatal|crash|fire|shooting|arrest\w*|charged|indict\w*|lawsuit|closure|layoffs?|outbreak|flood\w*|tornado|storm damage)\b`)
	positiveRe = regexp.MustCompile(`(?i)\b(celebrat\w*|win(?:s|ning)?|award\w*|honor\w*|grant\w*|expansion|groundbreaking|ribbon[- ]cutting|scholarship\w*|donat\w*|recover\w*|reopen\w*)\b`)
)

// Result is the classification outcome for one item.
type Result struct {
	AlertLevel entity.AlertLevel // zero value "" if nothing matched
	IsBreaking bool
	Sentiment  entity.Sentiment
	ExpiresAt  *time.Time
}

// Classify evaluates title/body against the priority ladder and keyword
// sentiment counts. now is passed in so ExpiresAt is deterministic and
// testable.
func Classify(title, bodyText string, now time.Time) Result {
	leadBody := bodyText
	if len(leadBody) > leadingBodyChars {
		leadBody = leadBody[:leadingBodyChars]
	}
	combined := title + " " + bodyText

	var level entity.AlertLevel
	isBreaking := false

	switch {
	case emergencyRe.MatchString(title + " " + leadBody):
		level = entity.AlertLevelEmergency
		isBreaking = true
	case breakingRe.MatchString(title):
		level = entity.AlertLevelBreaking
		isBreaking = true
	case officialRe.MatchString(combined):
		level = entity.AlertLevelDeveloping
		isBreaking = true
	case developingRe.MatchString(combined):
		level = entity.AlertLevelDeveloping
		isBreaking = false
	}

	result := Result{
		AlertLevel: level,
		IsBreaking: isBreaking,
		Sentiment:  sentiment(combined),
	}
	if isBreaking {
		expires := now.Add(expiryDuration)
		result.ExpiresAt = &expires
	}
	return result
}

func sentiment(text string) entity.Sentiment {
	neg := len(negativeRe.FindAllString(text, -1))
	pos := len(positiveRe.FindAllString(text, -1))
	diff := neg - pos
	switch {
	case diff > 1:
		return entity.SentimentNegative
	case diff < -1:
		return entity.SentimentPositive
	default:
		return entity.SentimentNeutral
	}
}
