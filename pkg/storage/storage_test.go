package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "tokradar.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mkRow(key string, rank int, recordID string, gmv float64) Row {
	return Row{
		CollectionKey: key,
		Rank:          rank,
		RecordID:      recordID,
		GMV:           gmv,
		Categories:    "[]",
		Insights:      "{}",
		Transcription: "{}",
		LastUpdated:   time.Now().UTC(),
	}
}

func TestReplaceSnapshotIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rowsA := []Row{mkRow("2025-01-01", 1, "a1", 10), mkRow("2025-01-01", 2, "a2", 20), mkRow("2025-01-01", 3, "a3", 30)}
	if err := db.ReplaceSnapshot(ctx, "2025-01-01", rowsA); err != nil {
		t.Fatalf("first replace: %v", err)
	}

	rowsB := []Row{mkRow("2025-01-01", 1, "b1", 5), mkRow("2025-01-01", 2, "b2", 15)}
	if err := db.ReplaceSnapshot(ctx, "2025-01-01", rowsB); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	got, err := db.ListSnapshot(ctx, "2025-01-01")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows after replace, got %d", len(got))
	}
	if got[0].RecordID != "b1" || got[1].RecordID != "b2" {
		t.Fatalf("residue from first run: %+v", got)
	}
}

func TestReplaceSnapshotLeavesOtherKeysAlone(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.ReplaceSnapshot(ctx, "2025-01-01", []Row{mkRow("2025-01-01", 1, "jan", 1)}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceSnapshot(ctx, "2025-01-02", []Row{mkRow("2025-01-02", 1, "feb", 2)}); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListSnapshot(ctx, "2025-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].RecordID != "jan" {
		t.Fatalf("unrelated key was touched: %+v", got)
	}
}

func TestReplaceSnapshotChunking(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Enough rows to span several insert chunks.
	var rows []Row
	for i := 1; i <= 137; i++ {
		rows = append(rows, mkRow("2025-02-01", i, "rec", float64(i)))
	}
	if err := db.ReplaceSnapshot(ctx, "2025-02-01", rows); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := db.ListSnapshot(ctx, "2025-02-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 137 {
		t.Fatalf("expected 137 rows, got %d", len(got))
	}
	for i, r := range got {
		if r.Rank != i+1 {
			t.Fatalf("rank %d at position %d", r.Rank, i)
		}
	}
}

func TestReplaceSnapshotCollapsesDuplicateRanks(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rows := []Row{mkRow("2025-03-01", 1, "first", 1), mkRow("2025-03-01", 1, "second", 2)}
	if err := db.ReplaceSnapshot(ctx, "2025-03-01", rows); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := db.ListSnapshot(ctx, "2025-03-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected duplicate rank to collapse to 1 row, got %d", len(got))
	}
	if got[0].RecordID != "second" {
		t.Fatalf("expected last write to win, got %q", got[0].RecordID)
	}
}

func TestLatestKeyAndStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if key, err := db.LatestKey(ctx); err != nil || key != "" {
		t.Fatalf("empty store: key=%q err=%v", key, err)
	}

	_ = db.ReplaceSnapshot(ctx, "2025-01-01", []Row{mkRow("2025-01-01", 1, "a", 10), mkRow("2025-01-01", 2, "b", 15)})
	_ = db.ReplaceSnapshot(ctx, "2025-01-02", []Row{mkRow("2025-01-02", 1, "c", 7)})

	key, err := db.LatestKey(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if key != "2025-01-02" {
		t.Fatalf("expected latest key 2025-01-02, got %q", key)
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 stat rows, got %d", len(stats))
	}
	// Newest first.
	if stats[0].CollectionKey != "2025-01-02" || stats[0].RowCount != 1 {
		t.Fatalf("unexpected stats[0]: %+v", stats[0])
	}
	if stats[1].TotalGMV != 25 {
		t.Fatalf("expected GMV 25 for 2025-01-01, got %f", stats[1].TotalGMV)
	}
}

func TestTimePostedRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	posted := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	row := mkRow("2025-01-15", 1, "x", 0)
	row.TimePosted = &posted
	if err := db.ReplaceSnapshot(ctx, "2025-01-15", []Row{row}); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListSnapshot(ctx, "2025-01-15")
	if err != nil {
		t.Fatal(err)
	}
	if got[0].TimePosted == nil {
		t.Fatal("time_posted lost on round trip")
	}
	if !got[0].TimePosted.Equal(posted) {
		t.Fatalf("expected %v, got %v", posted, got[0].TimePosted)
	}
}
