package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tokradar/tokradar/pkg/feed"
	"github.com/tokradar/tokradar/pkg/storage"
)

type stubFetcher struct {
	pages map[int][]feed.Record
	err   error
}

func (s *stubFetcher) FetchPage(ctx context.Context, offset, limit int, f feed.Filters) ([]feed.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	page, ok := s.pages[offset]
	if !ok {
		return []feed.Record{}, nil
	}
	return page, nil
}

type memStore struct {
	snapshots map[string][]storage.Row
	calls     int
	err       error
}

func newMemStore() *memStore { return &memStore{snapshots: map[string][]storage.Row{}} }

func (m *memStore) ReplaceSnapshot(ctx context.Context, key string, rows []storage.Row) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.snapshots[key] = rows
	return nil
}

func records(offset, n int) []feed.Record {
	out := make([]feed.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, feed.Record{Raw: fmt.Sprintf(`{"id":"r%d","gmv":%d,"product":{"name":"P%d"}}`, offset+i, 10, offset+i)})
	}
	return out
}

func baseConfig(fetcher feed.PageFetcher, store SnapshotStore) Config {
	return Config{
		Fetcher: fetcher,
		Store:   store,
		Key:     "2025-01-17",
		Collect: feed.CollectOptions{
			TargetCount: 20,
			PageSize:    10,
			MaxPages:    10,
			Sleep:       func(time.Duration) {},
		},
		Now: func() time.Time { return time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC) },
	}
}

func TestRunStoresRankedRows(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]feed.Record{
		0:  records(0, 10),
		10: records(10, 10),
	}}
	store := newMemStore()

	summary, err := Run(context.Background(), baseConfig(fetcher, store))
	if err != nil {
		t.Fatal(err)
	}

	rows := store.snapshots["2025-01-17"]
	if len(rows) != 20 {
		t.Fatalf("expected 20 stored rows, got %d", len(rows))
	}
	for i, r := range rows {
		if r.Rank != i+1 {
			t.Fatalf("rank %d at position %d", r.Rank, i)
		}
	}
	if summary.RowCount != 20 || summary.NoData {
		t.Fatalf("bad summary: %+v", summary)
	}
	if summary.TotalGMV != 200 {
		t.Fatalf("expected total GMV 200, got %v", summary.TotalGMV)
	}
	if len(summary.Top) != 5 {
		t.Fatalf("expected top-5 preview, got %d", len(summary.Top))
	}
	if summary.Top[0].Rank != 1 || summary.Top[0].Name != "P0" {
		t.Fatalf("bad preview head: %+v", summary.Top[0])
	}
}

func TestRunNoDataSkipsStore(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]feed.Record{}}
	store := newMemStore()
	store.snapshots["2025-01-17"] = []storage.Row{{CollectionKey: "2025-01-17", Rank: 1, RecordID: "old"}}

	summary, err := Run(context.Background(), baseConfig(fetcher, store))
	if err != nil {
		t.Fatal(err)
	}
	if !summary.NoData {
		t.Fatal("expected NoData outcome")
	}
	if store.calls != 0 {
		t.Fatalf("store must not be called on empty accumulation, got %d calls", store.calls)
	}
	if store.snapshots["2025-01-17"][0].RecordID != "old" {
		t.Fatal("prior snapshot was touched")
	}
}

func TestRunStoreFailureIsFatal(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]feed.Record{0: records(0, 5)}}
	store := newMemStore()
	store.err = errors.New("disk full")

	_, err := Run(context.Background(), baseConfig(fetcher, store))
	if err == nil {
		t.Fatal("expected store error to be run-fatal")
	}
}

func TestRunFetchErrorIsFatal(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("upstream rejected credentials")}
	store := newMemStore()

	_, err := Run(context.Background(), baseConfig(fetcher, store))
	if err == nil {
		t.Fatal("expected fetch error to be run-fatal")
	}
	if store.calls != 0 {
		t.Fatal("store must not be called after a fatal fetch error")
	}
}

type stubEnricher struct {
	calls   int
	failIDs map[string]bool
}

func (s *stubEnricher) EnrichRecord(ctx context.Context, rec feed.Record) (feed.Record, bool) {
	s.calls++
	if s.failIDs[rec.ID()] {
		return rec, false
	}
	return feed.Record{Raw: `{"id":"` + rec.ID() + `","product":{"name":"Enriched"}}`}, true
}

func TestRunEnrichesIncompleteRecords(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]feed.Record{
		0: {
			{Raw: `{"id":"bare1"}`},
			{Raw: `{"id":"full","product":{"name":"Complete"}}`},
			{Raw: `{"id":"bare2"}`},
		},
	}}
	store := newMemStore()
	enricher := &stubEnricher{}

	cfg := baseConfig(fetcher, store)
	cfg.Collect.TargetCount = 3
	cfg.Enricher = enricher

	if _, err := Run(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	if enricher.calls != 2 {
		t.Fatalf("expected 2 enrichment calls (incomplete records only), got %d", enricher.calls)
	}
	rows := store.snapshots["2025-01-17"]
	if rows[0].Name != "Enriched" || rows[1].Name != "Complete" {
		t.Fatalf("enrichment not reflected in rows: %q/%q", rows[0].Name, rows[1].Name)
	}
}

func TestRunMarksFailedEnrichment(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]feed.Record{
		0: {
			{Raw: `{"id":"broken"}`},
			{Raw: `{"id":"full","product":{"name":"Complete"}}`},
			{Raw: `{"id":"fixable"}`},
		},
	}}
	store := newMemStore()
	enricher := &stubEnricher{failIDs: map[string]bool{"broken": true}}

	cfg := baseConfig(fetcher, store)
	cfg.Collect.TargetCount = 3
	cfg.Enricher = enricher

	if _, err := Run(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	rows := store.snapshots["2025-01-17"]
	if !rows[0].HasError {
		t.Error("failed enrichment not flagged on the stored row")
	}
	if rows[1].HasError || rows[2].HasError {
		t.Errorf("HasError leaked onto healthy rows: %v/%v", rows[1].HasError, rows[2].HasError)
	}
	if rows[2].Name != "Enriched" {
		t.Errorf("successful enrichment lost: %q", rows[2].Name)
	}
}

func TestRunEnrichmentBounded(t *testing.T) {
	var page []feed.Record
	for i := 0; i < 30; i++ {
		page = append(page, feed.Record{Raw: fmt.Sprintf(`{"id":"bare%d"}`, i)})
	}
	fetcher := &stubFetcher{pages: map[int][]feed.Record{0: page}}
	store := newMemStore()
	enricher := &stubEnricher{}

	cfg := baseConfig(fetcher, store)
	cfg.Collect.TargetCount = 30
	cfg.Enricher = enricher
	cfg.MaxEnrich = 4

	if _, err := Run(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	if enricher.calls != 4 {
		t.Fatalf("expected enrichment capped at 4, got %d", enricher.calls)
	}
}

func TestKeys(t *testing.T) {
	ts := time.Date(2025, 1, 17, 23, 30, 0, 0, time.FixedZone("JST", 9*3600))
	if got := DailyKey(ts); got != "2025-01-17" {
		t.Errorf("DailyKey = %q", got)
	}
	if got := MonthlyKey(ts); got != "2025-01" {
		t.Errorf("MonthlyKey = %q", got)
	}
}
