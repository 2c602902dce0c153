// Package pipeline sequences one collection run: accumulate pages from the
// feed, normalize them into ranked rows, replace the snapshot for the run's
// collection key, and report a summary.
package pipeline

import (
	"context"
	"time"

	"github.com/tidwall/sjson"
	"github.com/tokradar/tokradar/pkg/feed"
	"github.com/tokradar/tokradar/pkg/normalize"
	"github.com/tokradar/tokradar/pkg/storage"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// SnapshotStore is the slice of the storage layer a run needs.
type SnapshotStore interface {
	ReplaceSnapshot(ctx context.Context, key string, rows []storage.Row) error
}

// Enricher optionally fills incomplete records before normalization;
// satisfied by *feed.Client.
type Enricher interface {
	EnrichRecord(ctx context.Context, rec feed.Record) (feed.Record, bool)
}

// Config holds everything Run needs for a single collection.
type Config struct {
	Fetcher feed.PageFetcher
	Store   SnapshotStore

	// Key is the snapshot partition this run replaces, e.g. "2025-01-17"
	// or "2025-01".
	Key     string
	Collect feed.CollectOptions

	// Enricher is optional; nil skips enrichment.
	Enricher Enricher
	// MaxEnrich bounds how many incomplete records get a share-page fetch.
	MaxEnrich int

	// TopN controls the summary preview size; defaults to 5.
	TopN int

	// Now is the normalization clock; nil means time.Now.
	Now func() time.Time

	Log Logger // optional; nil = no logging
}

// Preview is one line of the summary's top-N table.
type Preview struct {
	Rank     int     `json:"rank"`
	Name     string  `json:"name"`
	GMV      float64 `json:"gmv"`
	Views    int64   `json:"views"`
	ShopName string  `json:"shop_name"`
}

// Summary reports the outcome of one run.
type Summary struct {
	CollectionKey string    `json:"collection_key"`
	RowCount      int       `json:"row_count"`
	TotalGMV      float64   `json:"total_gmv"`
	Top           []Preview `json:"top"`
	NoData        bool      `json:"no_data"`
}

// Run executes one collection end to end. Zero accumulated records is not an
// error: the store step is skipped so an upstream outage can never wipe an
// existing snapshot with an empty replace. Anything returned as error is
// run-fatal.
func Run(ctx context.Context, cfg Config) (*Summary, error) {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	topN := cfg.TopN
	if topN <= 0 {
		topN = 5
	}

	log.Infof("Collecting snapshot %s (target %d, page size %d)", cfg.Key, cfg.Collect.TargetCount, cfg.Collect.PageSize)

	records, err := feed.Collect(ctx, cfg.Fetcher, cfg.Collect)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		log.Warnf("No records collected for %s; leaving any existing snapshot untouched", cfg.Key)
		return &Summary{CollectionKey: cfg.Key, NoData: true}, nil
	}

	if cfg.Enricher != nil {
		records = enrichIncomplete(ctx, cfg.Enricher, records, cfg.MaxEnrich, log)
	}

	rows := normalize.Rows(records, cfg.Key, now().UTC())

	if err := cfg.Store.ReplaceSnapshot(ctx, cfg.Key, rows); err != nil {
		return nil, err
	}
	log.Infof("Stored %d rows for %s", len(rows), cfg.Key)

	return buildSummary(cfg.Key, rows, topN), nil
}

// enrichIncomplete attempts a share-page fetch for records missing their
// product object, up to maxEnrich attempts. Records whose attempt fails are
// flagged so the stored row carries HasError.
func enrichIncomplete(ctx context.Context, enricher Enricher, records []feed.Record, maxEnrich int, log Logger) []feed.Record {
	if maxEnrich <= 0 {
		maxEnrich = 10
	}
	enriched := 0
	out := make([]feed.Record, len(records))
	for i, rec := range records {
		out[i] = rec
		if enriched >= maxEnrich || rec.HasProduct() {
			continue
		}
		if r, ok := enricher.EnrichRecord(ctx, rec); ok {
			out[i] = r
			enriched++
		} else if marked, merr := sjson.Set(rec.Raw, "has_error", true); merr == nil {
			out[i] = feed.Record{Raw: marked}
		}
	}
	if enriched > 0 {
		log.Debugf("Enriched %d incomplete records", enriched)
	}
	return out
}

func buildSummary(key string, rows []storage.Row, topN int) *Summary {
	s := &Summary{CollectionKey: key, RowCount: len(rows)}
	for _, r := range rows {
		s.TotalGMV += r.GMV
	}
	// Rows arrive rank-ordered, so the preview is just the head.
	for _, r := range rows {
		if len(s.Top) >= topN {
			break
		}
		s.Top = append(s.Top, Preview{
			Rank:     r.Rank,
			Name:     r.Name,
			GMV:      r.GMV,
			Views:    r.Views,
			ShopName: r.ShopName,
		})
	}
	return s
}

// DailyKey and MonthlyKey format collection keys, in UTC.
func DailyKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func MonthlyKey(t time.Time) string { return t.UTC().Format("2006-01") }
