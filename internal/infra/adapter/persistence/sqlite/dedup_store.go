package sqlite

import (
	"context"
	"fmt"
	"time"

	"kybuzz/internal/enrich/dedup"
	"kybuzz/internal/repository"
)

// DedupStore implements dedup.Store over an ItemRepository, applying the
// 48h/500-row window from spec.md §4.5.
type DedupStore struct {
	items repository.ItemRepository
}

// NewDedupStore constructs a DedupStore over items.
func NewDedupStore(items repository.ItemRepository) *DedupStore {
	return &DedupStore{items: items}
}

func (s *DedupStore) RecentCandidates(ctx context.Context, excludeItemID string) ([]dedup.Candidate, error) {
	since := time.Now().Add(-dedup.WindowHours * time.Hour)
	rows, err := s.items.RecentWithSignature(ctx, since, excludeItemID, dedup.MaxScanCandidates)
	if err != nil {
		return nil, fmt.Errorf("DedupStore.RecentCandidates: %w", err)
	}

	candidates := make([]dedup.Candidate, 0, len(rows))
	for _, it := range rows {
		if it.MinHash == "" {
			continue
		}
		sig, err := dedup.Parse(it.MinHash)
		if err != nil {
			continue
		}
		c := dedup.Candidate{ItemID: it.ID, Signature: sig}
		if it.PublishedAt != nil {
			unix := it.PublishedAt.Unix()
			c.PublishedAt = &unix
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}
