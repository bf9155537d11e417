package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kybuzz/internal/domain/entity"
	"kybuzz/internal/enrich/location"
	"kybuzz/internal/infra/notifier"
)

type fakeItems struct {
	counties map[string]bool
}

func (f *fakeItems) Get(ctx context.Context, id string) (*entity.Item, error) { return nil, nil }
func (f *fakeItems) GetByHash(ctx context.Context, id string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeItems) Upsert(ctx context.Context, item *entity.Item) error          { return nil }
func (f *fakeItems) UpdateEnrichment(ctx context.Context, item *entity.Item) error { return nil }
func (f *fakeItems) UpdateMinHash(ctx context.Context, itemID, minhash string) error { return nil }
func (f *fakeItems) LinkFeed(ctx context.Context, feedID, itemID string) error    { return nil }
func (f *fakeItems) UnlinkIfOrphaned(ctx context.Context, itemID string) error    { return nil }
func (f *fakeItems) ReplaceLocations(ctx context.Context, itemID string, locations []entity.ItemLocation) error {
	return nil
}
func (f *fakeItems) ReplaceCategories(ctx context.Context, itemID string, categories []string) error {
	return nil
}
func (f *fakeItems) RecentWithSignature(ctx context.Context, since time.Time, excludeID string, limit int) ([]*entity.Item, error) {
	return nil, nil
}
func (f *fakeItems) CountiesWithRecentItems(ctx context.Context, since time.Time) (map[string]bool, error) {
	return f.counties, nil
}

type fakeFeeds struct {
	feeds []*entity.Feed
}

func (f *fakeFeeds) Get(ctx context.Context, id string) (*entity.Feed, error) { return nil, nil }
func (f *fakeFeeds) ListEnabled(ctx context.Context, limit int) ([]*entity.Feed, error) {
	return f.feeds, nil
}
func (f *fakeFeeds) ListAll(ctx context.Context) ([]*entity.Feed, error) { return f.feeds, nil }
func (f *fakeFeeds) Upsert(ctx context.Context, feed *entity.Feed) error { return nil }
func (f *fakeFeeds) TouchValidators(ctx context.Context, id string, etag, lastModified *string, checkedAt time.Time) error {
	return nil
}
func (f *fakeFeeds) CountiesWithEnabledNonBingFeed(ctx context.Context) (map[string]bool, error) {
	return nil, nil
}

type fakeRuns struct {
	errorCounts map[string]int
}

func (f *fakeRuns) StartRun(ctx context.Context, run *entity.FetchRun) error  { return nil }
func (f *fakeRuns) FinishRun(ctx context.Context, run *entity.FetchRun) error { return nil }
func (f *fakeRuns) RecordFeedMetric(ctx context.Context, m entity.FeedRunMetric) error {
	return nil
}
func (f *fakeRuns) RecordFetchError(ctx context.Context, feedID *string, errMsg string) error {
	return nil
}
func (f *fakeRuns) RecentErrorCount(ctx context.Context, feedID string, since time.Time) (int, error) {
	return f.errorCounts[feedID], nil
}

type fakeAlerts struct {
	mu        sync.Mutex
	fired     map[string]time.Time
	delivered []entity.ChannelDeliveryLog
}

func newFakeAlerts() *fakeAlerts {
	return &fakeAlerts{fired: map[string]time.Time{}}
}

func (f *fakeAlerts) LastFired(ctx context.Context, alertKey string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.fired[alertKey]
	return t, ok, nil
}
func (f *fakeAlerts) RecordFired(ctx context.Context, alertKey string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fired[alertKey] = at
	return nil
}
func (f *fakeAlerts) RecordDelivery(ctx context.Context, log entity.ChannelDeliveryLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, log)
	return nil
}

type fakeChannel struct {
	name    string
	enabled bool
	sent    []notifier.Message
	mu      sync.Mutex
}

func (c *fakeChannel) Name() string    { return c.name }
func (c *fakeChannel) IsEnabled() bool { return c.enabled }
func (c *fakeChannel) Send(ctx context.Context, msg notifier.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func TestCheckCoverageGap_FiresWhenCountiesEmpty(t *testing.T) {
	covered := map[string]bool{}
	for _, c := range location.AllCounties() {
		covered[c] = true
	}
	// Leave two counties uncovered.
	all := location.AllCounties()
	require.True(t, len(all) > 2)
	delete(covered, all[0])
	delete(covered, all[1])

	ch := &fakeChannel{name: "slack", enabled: true}
	alerts := newFakeAlerts()
	svc := &Service{
		Items:    &fakeItems{counties: covered},
		Alerts:   alerts,
		Channels: []notifier.Channel{ch},
	}

	fired, err := svc.checkCoverageGap(context.Background())
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Len(t, ch.sent, 1)
	assert.Len(t, alerts.delivered, 1)
	assert.True(t, alerts.delivered[0].Success)
}

func TestCheckCoverageGap_NoGapNoFire(t *testing.T) {
	covered := map[string]bool{}
	for _, c := range location.AllCounties() {
		covered[c] = true
	}
	svc := &Service{Items: &fakeItems{counties: covered}, Alerts: newFakeAlerts()}
	fired, err := svc.checkCoverageGap(context.Background())
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestCheckCoverageGap_RespectsCooldown(t *testing.T) {
	covered := map[string]bool{}
	all := location.AllCounties()
	for _, c := range all[2:] {
		covered[c] = true
	}
	alerts := newFakeAlerts()
	svc := &Service{Items: &fakeItems{counties: covered}, Alerts: alerts, Cooldown: 6 * time.Hour}

	fired, err := svc.checkCoverageGap(context.Background())
	require.NoError(t, err)
	assert.True(t, fired)

	fired, err = svc.checkCoverageGap(context.Background())
	require.NoError(t, err)
	assert.False(t, fired, "second run within cooldown must not refire")
}

func TestCheckFeedFailures_ThresholdMet(t *testing.T) {
	feeds := []*entity.Feed{{ID: "feed-1"}, {ID: "feed-2"}}
	runs := &fakeRuns{errorCounts: map[string]int{"feed-1": 3}}
	svc := &Service{Feeds: &fakeFeeds{feeds: feeds}, Runs: runs, Alerts: newFakeAlerts()}

	fired, err := svc.checkFeedFailures(context.Background())
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestCheckFeedFailures_BelowThreshold(t *testing.T) {
	feeds := []*entity.Feed{{ID: "feed-1"}}
	runs := &fakeRuns{errorCounts: map[string]int{"feed-1": 2}}
	svc := &Service{Feeds: &fakeFeeds{feeds: feeds}, Runs: runs, Alerts: newFakeAlerts()}

	fired, err := svc.checkFeedFailures(context.Background())
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestNotifyBreaking_GatedByOnBreaking(t *testing.T) {
	ch := &fakeChannel{name: "slack", enabled: true}
	svc := &Service{Alerts: newFakeAlerts(), Channels: []notifier.Channel{ch}, OnBreaking: false}

	err := svc.NotifyBreaking(context.Background(), &entity.Item{ID: "item-1", Title: "Big storm"})
	require.NoError(t, err)
	assert.Empty(t, ch.sent)
}

func TestNotifyBreaking_FiresOncePerItem(t *testing.T) {
	ch := &fakeChannel{name: "slack", enabled: true}
	alerts := newFakeAlerts()
	svc := &Service{Alerts: alerts, Channels: []notifier.Channel{ch}, OnBreaking: true}

	item := &entity.Item{ID: "item-1", Title: "Big storm", URL: "https://example.com/a"}
	require.NoError(t, svc.NotifyBreaking(context.Background(), item))
	require.NoError(t, svc.NotifyBreaking(context.Background(), item))

	assert.Len(t, ch.sent, 1, "breaking alert must fire at most once per item")
}

func TestDispatch_DisabledChannelSkipped(t *testing.T) {
	ch := &fakeChannel{name: "postmark", enabled: false}
	alerts := newFakeAlerts()
	svc := &Service{Alerts: alerts, Channels: []notifier.Channel{ch}}
	svc.dispatch(context.Background(), notifier.Message{AlertKey: "k", Title: "t"})
	assert.Empty(t, ch.sent)
	assert.Empty(t, alerts.delivered)
}
