package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DefaultMaxRounds bounds how many listing pages the seeder walks when no
// explicit bound is configured.
const DefaultMaxRounds = 50

// SeederConfig tunes the discovery seeder.
type SeederConfig struct {
	// MaxRounds caps the number of listing pages inspected. Zero selects
	// DefaultMaxRounds.
	MaxRounds int
}

// Seeder builds the initial URL list for discovery-seeded crawls by paging
// through a listing page and collecting its preview links.
type Seeder struct {
	maxRounds int
	logger    *zap.Logger
}

// NewSeeder constructs a Seeder.
func NewSeeder(cfg SeederConfig, logger *zap.Logger) *Seeder {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{maxRounds: cfg.MaxRounds, logger: logger}
}

// Seed collects up to target distinct preview URLs from listingURL. It stops
// once target links are known, when the listing has no next control, when a
// round adds nothing new, or after the configured number of rounds. Any
// navigation or extraction failure is returned wrapped in ErrDiscovery.
func (s *Seeder) Seed(ctx context.Context, session Session, listingURL string, target int) ([]string, error) {
	if target <= 0 {
		return []string{}, nil
	}
	page, err := session.OpenListing(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("%w: open listing: %w", ErrDiscovery, err)
	}

	seen := make(map[string]struct{})
	links := make([]string, 0, target)
	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
		}
		found, err := page.PreviewLinks(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: collect previews: %w", ErrDiscovery, err)
		}
		added := 0
		for _, link := range found {
			if _, dup := seen[link]; dup || link == "" {
				continue
			}
			seen[link] = struct{}{}
			links = append(links, link)
			added++
		}
		s.logger.Debug("discovery round",
			zap.Int("round", round),
			zap.Int("added", added),
			zap.Int("total", len(links)),
		)
		if len(links) >= target || added == 0 || round >= s.maxRounds {
			break
		}
		more, err := page.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: next page: %w", ErrDiscovery, err)
		}
		if !more {
			break
		}
	}
	if len(links) > target {
		links = links[:target]
	}
	return links, nil
}
