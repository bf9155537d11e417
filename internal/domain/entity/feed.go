// Package entity defines the core domain entities and validation logic for
// the ingestion and enrichment pipeline: Feed, Item, and the tables that
// join or describe them.
package entity

import (
	"errors"
	"fmt"
	"time"
)

// FetchMode identifies how a Feed's items are obtained.
type FetchMode string

const (
	FetchModeRSS          FetchMode = "rss"
	FetchModeScrape       FetchMode = "scrape"
	FetchModeFacebookPage FetchMode = "facebook-page"
)

// RegionScope controls whether an Item can carry county locations.
type RegionScope string

const (
	RegionScopeKY       RegionScope = "ky"
	RegionScopeNational RegionScope = "national"
)

// Feed represents a configured source (RSS, scrape, or Facebook page)
// producing zero or more Item candidates per poll.
//
// Lifecycle: created by seed or admin; mutated only by admin or by the
// Orchestrator (conditional-fetch validators and LastCheckedAt); never
// deleted implicitly.
type Feed struct {
	ID             string
	Name           string
	URL            string
	Category       string
	StateCode      string
	RegionScope    RegionScope
	FetchMode      FetchMode
	ScraperID      *string
	DefaultCounty  *string
	Enabled        bool
	IsBingFallback bool
	ETag           *string
	LastModified   *string
	LastCheckedAt  *time.Time
	ScraperConfig  *ScraperConfig
}

// ScraperConfig holds the selector map for Feeds whose FetchMode is
// FetchModeScrape. Different fields are populated depending on the page
// shape the scraper targets.
type ScraperConfig struct {
	ItemSelector  string `json:"item_selector,omitempty"`
	TitleSelector string `json:"title_selector,omitempty"`
	LinkSelector  string `json:"link_selector,omitempty"`
	SummarySelector string `json:"summary_selector,omitempty"`
	DateSelector  string `json:"date_selector,omitempty"`
	ImageSelector string `json:"image_selector,omitempty"`
	DateFormat    string `json:"date_format,omitempty"`
	URLPrefix     string `json:"url_prefix,omitempty"`
}

// Validate checks that the Feed is internally consistent: the fetch mode is
// known and scrape-mode feeds carry a ScraperConfig.
func (f *Feed) Validate() error {
	switch f.FetchMode {
	case "":
		f.FetchMode = FetchModeRSS
	case FetchModeRSS, FetchModeScrape, FetchModeFacebookPage:
	default:
		return fmt.Errorf("invalid fetch_mode: %s (must be rss, scrape, or facebook-page)", f.FetchMode)
	}

	if f.FetchMode == FetchModeScrape && f.ScraperConfig == nil {
		return errors.New("scraper_config is required for scrape fetch_mode")
	}

	switch f.RegionScope {
	case "":
		f.RegionScope = RegionScopeKY
	case RegionScopeKY, RegionScopeNational:
	default:
		return fmt.Errorf("invalid region_scope: %s (must be ky or national)", f.RegionScope)
	}

	return ValidateURL(f.URL)
}
