package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItem() Item {
	return Item{
		ID:          "abc123",
		Title:       "House passes HB 200",
		URL:         "https://example.com/a",
		RegionScope: RegionScopeKY,
		FetchedAt:   time.Now(),
	}
}

func TestItem_Validate_OK(t *testing.T) {
	it := validItem()
	require.NoError(t, it.Validate())
}

func TestItem_Validate_DuplicateRequiresDistinctCanonical(t *testing.T) {
	it := validItem()
	it.IsDuplicate = true
	it.CanonicalItemID = ""
	assert.Error(t, it.Validate())

	it.CanonicalItemID = it.ID
	assert.Error(t, it.Validate())

	it.CanonicalItemID = "other-id"
	assert.NoError(t, it.Validate())
}

func TestItem_Validate_BreakingRequiresExpiry(t *testing.T) {
	it := validItem()
	it.IsBreaking = true
	assert.Error(t, it.Validate())

	future := time.Now().Add(4 * time.Hour)
	it.BreakingExpiresAt = &future
	assert.NoError(t, it.Validate())
}

func TestItem_Validate_DeprioritizedRequiresPaywalledAndDuplicate(t *testing.T) {
	it := validItem()
	it.PaywallDeprioritized = true
	assert.Error(t, it.Validate())

	it.IsPaywalled = true
	it.IsDuplicate = true
	it.CanonicalItemID = "other"
	assert.NoError(t, it.Validate())
}

func TestItem_ActiveBreaking(t *testing.T) {
	now := time.Now()
	it := validItem()
	assert.False(t, it.ActiveBreaking(now))

	expired := now.Add(-time.Minute)
	it.IsBreaking = true
	it.BreakingExpiresAt = &expired
	assert.False(t, it.ActiveBreaking(now))

	active := now.Add(time.Minute)
	it.BreakingExpiresAt = &active
	assert.True(t, it.ActiveBreaking(now))
}
