package breaking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kybuzz/internal/domain/entity"
)

func TestClassify_EmergencyInTitleOrLeadingBody(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	result := Classify("Tornado warning issued for Fayette County", "Residents should take shelter immediately.", now)
	assert.Equal(t, entity.AlertLevelEmergency, result.AlertLevel)
	assert.True(t, result.IsBreaking)
	assert.NotNil(t, result.ExpiresAt)
	assert.Equal(t, now.Add(4*time.Hour), *result.ExpiresAt)
}

func TestClassify_BreakingOnlyInTitle(t *testing.T) {
	now := time.Now()
	result := Classify("BREAKING: council approves new budget", "The vote was unanimous.", now)
	assert.Equal(t, entity.AlertLevelBreaking, result.AlertLevel)
	assert.True(t, result.IsBreaking)
}

func TestClassify_BreakingWordInBodyOnlyIsNoise(t *testing.T) {
	now := time.Now()
	result := Classify("Council approves new budget", "This is a breaking development in local politics.", now)
	assert.NotEqual(t, entity.AlertLevelBreaking, result.AlertLevel)
}

func TestClassify_OfficialSourceYieldsDevelopingAndIsBreaking(t *testing.T) {
	now := time.Now()
	result := Classify("Weather update for the region", "The National Weather Service issued a statement today.", now)
	assert.Equal(t, entity.AlertLevelDeveloping, result.AlertLevel)
	assert.True(t, result.IsBreaking)
}

func TestClassify_PlainDevelopingDoesNotSetIsBreaking(t *testing.T) {
	now := time.Now()
	result := Classify("City hall fire update", "This is a developing story, more to come as officials say details emerge.", now)
	assert.Equal(t, entity.AlertLevelDeveloping, result.AlertLevel)
	assert.False(t, result.IsBreaking)
	assert.Nil(t, result.ExpiresAt)
}

func TestClassify_NoMatchYieldsEmptyLevel(t *testing.T) {
	now := time.Now()
	result := Classify("Local bakery opens downtown", "Customers lined up for fresh bread.", now)
	assert.Equal(t, entity.AlertLevel(""), result.AlertLevel)
	assert.False(t, result.IsBreaking)
}

func TestClassify_SentimentNegative(t *testing.T) {
	now := time.Now()
	result := Classify("City update", "A fire killed one person and injured three others in a crash.", now)
	assert.Equal(t, entity.SentimentNegative, result.Sentiment)
}

func TestClassify_SentimentPositive(t *testing.T) {
	now := time.Now()
	result := Classify("City update", "Residents celebrate the ribbon-cutting and award winners at the reopening.", now)
	assert.Equal(t, entity.SentimentPositive, result.Sentiment)
}

func TestClassify_SentimentNeutralWhenClose(t *testing.T) {
	now := time.Now()
	result := Classify("City update", "The crash was followed by a celebration of the recovery effort.", now)
	assert.Equal(t, entity.SentimentNeutral, result.Sentiment)
}
