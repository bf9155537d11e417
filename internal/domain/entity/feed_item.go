package entity

// FeedItem is the many-to-many join between Feed and Item: the same Item
// may appear in multiple feeds. Deletion of an Item cascades to rows here.
type FeedItem struct {
	FeedID string
	ItemID string
}
