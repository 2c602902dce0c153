package feed

import (
	"context"
	"time"
)

// PageFetcher is what the accumulator drives; satisfied by *Client.
type PageFetcher interface {
	FetchPage(ctx context.Context, offset, limit int, f Filters) ([]Record, error)
}

// CollectOptions parameterizes one accumulation run. Every collection
// variant (daily products, videos, monthly) goes through the same loop with
// different options instead of duplicating it.
type CollectOptions struct {
	TargetCount int
	PageSize    int
	MaxPages    int
	StartOffset int
	Filters     Filters

	// Delay is the courtesy pause between page requests. Sleep lets tests
	// skip it; nil means time.Sleep.
	Delay time.Duration
	Sleep func(time.Duration)
}

// Collect fetches pages in strict offset order until it has TargetCount
// records, hits MaxPages, or sees an empty page, which is treated as end of
// feed. An upstream error page looks the same; retry already happened a
// level down. The offset advances by the actual page length, so
// short pages don't cause overlapping fetches.
func Collect(ctx context.Context, fetcher PageFetcher, opts CollectOptions) ([]Record, error) {
	if opts.TargetCount <= 0 || opts.PageSize <= 0 {
		return []Record{}, nil
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 50
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	accumulated := []Record{}
	offset := opts.StartOffset
	pagesFetched := 0

	for len(accumulated) < opts.TargetCount && pagesFetched < opts.MaxPages {
		if err := ctx.Err(); err != nil {
			return accumulated, err
		}

		page, err := fetcher.FetchPage(ctx, offset, opts.PageSize, opts.Filters)
		if err != nil {
			return accumulated, err
		}
		pagesFetched++

		if len(page) == 0 {
			break
		}

		accumulated = append(accumulated, page...)
		offset += len(page)

		if len(accumulated) < opts.TargetCount && pagesFetched < opts.MaxPages && opts.Delay > 0 {
			sleep(opts.Delay)
		}
	}

	if len(accumulated) > opts.TargetCount {
		accumulated = accumulated[:opts.TargetCount]
	}
	return accumulated, nil
}
