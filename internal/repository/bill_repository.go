package repository

import "context"

// BillRepository backs the Bill Linker (C8): existence checks against the
// ky_bills registry and the Item<->Bill junction.
type BillRepository interface {
	Exists(ctx context.Context, billNumber string) (bool, error)
	LinkItem(ctx context.Context, itemID, billNumber string) error
}
