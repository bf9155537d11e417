package sqlite

import (
	"context"
	"fmt"

	"kybuzz/internal/infra/storage"
	"kybuzz/internal/repository"
)

// BillRepo implements repository.BillRepository.
type BillRepo struct {
	gw *storage.Gateway
}

// NewBillRepo constructs a BillRepo over gw.
func NewBillRepo(gw *storage.Gateway) repository.BillRepository {
	return &BillRepo{gw: gw}
}

func (repo *BillRepo) Exists(ctx context.Context, billNumber string) (bool, error) {
	var count int
	err := repo.gw.Get(ctx, &count, `SELECT COUNT(*) FROM ky_bills WHERE bill_number = ?`, billNumber)
	if err != nil {
		return false, fmt.Errorf("BillRepo.Exists: %w", err)
	}
	return count > 0, nil
}

func (repo *BillRepo) LinkItem(ctx context.Context, itemID, billNumber string) error {
	const query = `INSERT INTO article_bills (item_id, bill_number) VALUES (?, ?) ON CONFLICT DO NOTHING`
	if err := repo.gw.Exec(ctx, query, itemID, billNumber); err != nil {
		return fmt.Errorf("BillRepo.LinkItem: %w", err)
	}
	return nil
}
