package entity

// ItemLocation is a (state, county) membership row. County == "" means
// "state-level only." The set of ItemLocation rows for an Item defines the
// county filter surface consumed by the Query Composer.
type ItemLocation struct {
	ItemID    string
	StateCode string
	County    string
}

// IsStateLevel reports whether this row represents state-wide coverage
// rather than a specific county.
func (l ItemLocation) IsStateLevel() bool {
	return l.County == ""
}
