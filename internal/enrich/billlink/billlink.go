// Package billlink extracts Kentucky legislative bill references from
// article text and links them to items that match a known bill in the
// ky_bills registry, per spec.md §4.8.
package billlink

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"kybuzz/internal/repository"
)

// LegislatureCategory is added to an item whenever at least one bill link
// succeeds.
const LegislatureCategory = "legislature"

var billRe = regexp.MustCompile(`(?i)\b([HS])\.?\s*(B|R|CR|JR)\.?\s*(\d{1,4})\b`)

// Extract finds all distinct canonical bill references (e.g. "HB 123") in
// text, in first-seen order.
func Extract(text string) []string {
	matches := billRe.FindAllStringSubmatch(text, -1)
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		canonical := canonicalize(m[1], m[2], m[3])
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	return out
}

func canonicalize(chamber, kind, number string) string {
	n, err := strconv.Atoi(number)
	if err != nil {
		n = 0
	}
	return fmt.Sprintf("%s%s %d", strings.ToUpper(chamber), strings.ToUpper(kind), n)
}

// Result is the outcome of linking one item's text against the registry.
type Result struct {
	LinkedBills []string
	AddCategory bool
}

// Link extracts bill references from text, checks each against the
// ky_bills registry via bills, and records a link for each that exists.
// Returns the bills actually linked; AddCategory is true when at least one
// link succeeded, signaling the caller to add LegislatureCategory.
func Link(ctx context.Context, bills repository.BillRepository, itemID, text string) (Result, error) {
	candidates := Extract(text)
	var linked []string
	for _, billNumber := range candidates {
		exists, err := bills.Exists(ctx, billNumber)
		if err != nil {
			return Result{}, fmt.Errorf("billlink: check %q: %w", billNumber, err)
		}
		if !exists {
			continue
		}
		if err := bills.LinkItem(ctx, itemID, billNumber); err != nil {
			return Result{}, fmt.Errorf("billlink: link %q: %w", billNumber, err)
		}
		linked = append(linked, billNumber)
	}
	return Result{LinkedBills: linked, AddCategory: len(linked) > 0}, nil
}
