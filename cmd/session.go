package main

import (
	"context"

	"github.com/sells-group/region-atlas/internal/config"
	"github.com/sells-group/region-atlas/internal/fetcher"
	"github.com/sells-group/region-atlas/internal/session"
)

// newFetcher builds the scheme-routing fetcher for all source locations.
func newFetcher(c *config.Config) *fetcher.Mux {
	return &fetcher.Mux{
		HTTP: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  c.Fetch.UserAgent,
			Timeout:    c.Fetch.Timeout(),
			RatePerSec: c.Fetch.RatePerSec,
		}),
		FTP:  fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: c.Fetch.Timeout()}),
		File: fetcher.NewFileFetcher(nil),
	}
}

func sessionOptions(c *config.Config) session.Options {
	return session.Options{
		Features:        c.Sources.Features,
		FeaturesObject:  c.Sources.FeaturesObject,
		Statistics:      c.Sources.Statistics,
		StatisticsPath:  c.Sources.StatisticsPath,
		StatisticsSheet: c.Sources.StatisticsSheet,
		Hierarchy:       c.Sources.Hierarchy,
		TempDir:         c.Fetch.TempDir,
		FillField:       c.Match.FillField,
		MinFuzzyLength:  c.Match.MinFuzzyLength,
		CacheEntries:    c.Cache.MaxEntries,
		CacheTTL:        c.Cache.TTL(),
	}
}

// loadSession validates the config for mode and loads every source.
func loadSession(ctx context.Context, c *config.Config, mode string) (*session.Session, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}
	return session.Load(ctx, newFetcher(c), sessionOptions(c))
}
