package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/tokradar/tokradar/pkg/retry"

	_ "modernc.org/sqlite"
)

// insertChunkSize bounds the number of rows per INSERT batch.
const insertChunkSize = 50

type DB struct {
	sql *sql.DB

	// Sleep is used between insert retry attempts. Tests replace it.
	Sleep func(time.Duration)
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists. Never destructive to existing data.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS trend_snapshots (
  id             INTEGER PRIMARY KEY,
  collection_key TEXT NOT NULL,
  rank           INTEGER NOT NULL CHECK (rank > 0),
  record_id      TEXT NOT NULL,
  product_id     TEXT,
  name           TEXT NOT NULL DEFAULT '',
  price          REAL NOT NULL DEFAULT 0,
  shop_id        TEXT NOT NULL DEFAULT '',
  shop_name      TEXT NOT NULL DEFAULT '',
  shop_domain    TEXT NOT NULL DEFAULT '',
  image_url      TEXT NOT NULL DEFAULT '',
  views          INTEGER NOT NULL DEFAULT 0,
  likes          INTEGER NOT NULL DEFAULT 0,
  comments       INTEGER NOT NULL DEFAULT 0,
  gmv            REAL NOT NULL DEFAULT 0,
  units_sold     INTEGER NOT NULL DEFAULT 0,
  video_count    INTEGER NOT NULL DEFAULT 0,
  creator_count  INTEGER NOT NULL DEFAULT 0,
  trending_score INTEGER NOT NULL DEFAULT 0,
  viral_score    INTEGER NOT NULL DEFAULT 0,
  categories     TEXT NOT NULL DEFAULT '[]',
  insights       TEXT NOT NULL DEFAULT '{}',
  transcription  TEXT NOT NULL DEFAULT '{}',
  time_posted    DATETIME,
  last_updated   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  is_ad          INTEGER NOT NULL CHECK (is_ad IN (0,1)) DEFAULT 0,
  has_error      INTEGER NOT NULL CHECK (has_error IN (0,1)) DEFAULT 0,
  UNIQUE(collection_key, rank)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_key ON trend_snapshots(collection_key);
CREATE INDEX IF NOT EXISTS idx_snapshots_record ON trend_snapshots(collection_key, record_id);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db, Sleep: time.Sleep}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// ReplaceSnapshot deletes all rows stored under key and inserts rows in
// their place, as one transaction. Transient store errors (locked/busy
// database) retry the whole transaction with backoff; after a successful
// call the store contains exactly rows for key.
func (d *DB) ReplaceSnapshot(ctx context.Context, key string, rows []Row) error {
	return retry.Do(ctx, func() error {
		err := d.replaceOnce(ctx, key, rows)
		if err != nil && isBusy(err) {
			return retry.Transient(err)
		}
		return err
	}, retry.Options{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Sleep: d.Sleep})
}

func (d *DB) replaceOnce(ctx context.Context, key string, rows []Row) (err error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM trend_snapshots WHERE collection_key = ?`, key); err != nil {
		return err
	}

	for start := 0; start < len(rows); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if err = insertChunk(ctx, tx, key, rows[start:end]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertChunk(ctx context.Context, tx *sql.Tx, key string, rows []Row) error {
	const stmt = `INSERT OR REPLACE INTO trend_snapshots(
collection_key, rank, record_id, product_id, name, price,
shop_id, shop_name, shop_domain, image_url,
views, likes, comments, gmv, units_sold, video_count, creator_count,
trending_score, viral_score, categories, insights, transcription,
time_posted, last_updated, is_ad, has_error
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

	for _, r := range rows {
		// Timestamps go in as RFC3339 text so reads don't depend on
		// driver-specific time encoding.
		var posted interface{}
		if r.TimePosted != nil {
			posted = r.TimePosted.UTC().Format(time.RFC3339)
		}
		if _, err := tx.ExecContext(ctx, stmt,
			key, r.Rank, r.RecordID, nullIfEmpty(r.ProductID), r.Name, r.Price,
			r.ShopID, r.ShopName, r.ShopDomain, r.ImageURL,
			r.Views, r.Likes, r.Comments, r.GMV, r.UnitsSold, r.VideoCount, r.CreatorCount,
			r.TrendingScore, r.ViralScore, r.Categories, r.Insights, r.Transcription,
			posted, r.LastUpdated.UTC().Format(time.RFC3339), boolToInt(r.IsAd), boolToInt(r.HasError),
		); err != nil {
			return err
		}
	}
	return nil
}

// ListSnapshot returns all rows for key ordered by rank.
func (d *DB) ListSnapshot(ctx context.Context, key string) ([]Row, error) {
	q := `SELECT collection_key, rank, record_id, product_id, name, price,
shop_id, shop_name, shop_domain, image_url,
views, likes, comments, gmv, units_sold, video_count, creator_count,
trending_score, viral_score, categories, insights, transcription,
time_posted, last_updated, is_ad, has_error
FROM trend_snapshots WHERE collection_key = ? ORDER BY rank`

	rows, err := d.sql.QueryContext(ctx, q, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var productID sql.NullString
		var posted sql.NullString
		var updated string
		var isAd, hasError int
		if err := rows.Scan(
			&r.CollectionKey, &r.Rank, &r.RecordID, &productID, &r.Name, &r.Price,
			&r.ShopID, &r.ShopName, &r.ShopDomain, &r.ImageURL,
			&r.Views, &r.Likes, &r.Comments, &r.GMV, &r.UnitsSold, &r.VideoCount, &r.CreatorCount,
			&r.TrendingScore, &r.ViralScore, &r.Categories, &r.Insights, &r.Transcription,
			&posted, &updated, &isAd, &hasError,
		); err != nil {
			return nil, err
		}
		r.ProductID = productID.String
		if posted.Valid {
			if t, ok := parseSQLiteTime(posted.String); ok {
				r.TimePosted = &t
			}
		}
		if t, ok := parseSQLiteTime(updated); ok {
			r.LastUpdated = t
		}
		r.IsAd = isAd == 1
		r.HasError = hasError == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestKey returns the most recent collection key, or "" when the store is
// empty. Date and month keys both sort lexicographically.
func (d *DB) LatestKey(ctx context.Context) (string, error) {
	var key sql.NullString
	err := d.sql.QueryRowContext(ctx, `SELECT MAX(collection_key) FROM trend_snapshots`).Scan(&key)
	if err != nil {
		return "", err
	}
	return key.String, nil
}

// GetStats returns per-snapshot row counts and GMV totals.
func (d *DB) GetStats(ctx context.Context) ([]KeyStats, error) {
	query := `
		SELECT
			collection_key,
			COUNT(*),
			COALESCE(SUM(gmv), 0),
			COALESCE(MAX(last_updated), '')
		FROM
			trend_snapshots
		GROUP BY
			collection_key
		ORDER BY
			collection_key DESC;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []KeyStats
	for rows.Next() {
		var s KeyStats
		if err := rows.Scan(&s.CollectionKey, &s.RowCount, &s.TotalGMV, &s.LastUpdated); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

func parseSQLiteTime(s string) (time.Time, bool) {
	// CURRENT_TIMESTAMP format first, then RFC3339 variants.
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database table is locked")
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
