// Package normalize flattens heterogeneous feed records into the row schema
// the snapshot store persists. Everything here is pure: no I/O, no clock
// reads, no hidden state.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tokradar/tokradar/pkg/feed"
	"github.com/tokradar/tokradar/pkg/storage"
)

// Normalize maps one feed record into a row for the given collection key.
// rank comes from the record's position in the accumulated list, 1-based;
// any rank/ordering field the upstream supplied is ignored, since those were
// observed to reset per page on some endpoint variants.
func Normalize(rec feed.Record, rank int, key string, now time.Time) storage.Row {
	row := storage.Row{
		CollectionKey: key,
		Rank:          rank,
		RecordID:      rec.ID(),
		ProductID:     rec.ProductID(),

		Name:     firstString(rec, "product.name", "product.title", "title", "name"),
		Price:    parsePrice(firstResult(rec, "product.price", "price")),
		ShopID:   firstString(rec, "product.shop_id", "product.shop.id", "shop.id", "shop_id"),
		ShopName: firstString(rec, "product.shop_name", "product.shop.name", "shop.name", "shop_name"),
		ImageURL: firstString(rec, "product.image_url", "product.cover", "cover", "image_url"),

		Views:        firstInt(rec, "views", "view_count", "stats.views"),
		Likes:        firstInt(rec, "likes", "like_count", "digg_count"),
		Comments:     firstInt(rec, "comments", "comment_count"),
		GMV:          firstFloat(rec, "gmv", "product.gmv"),
		UnitsSold:    firstInt(rec, "product.units_sold", "units_sold", "sold_count", "product.sales"),
		VideoCount:   firstInt(rec, "video_count", "videos"),
		CreatorCount: firstInt(rec, "creator_count", "creators"),

		Categories:    serializeCategories(rec),
		Insights:      serializeObject(rec, "insights"),
		Transcription: serializeTranscription(rec),

		TimePosted:  parseTimePosted(rec),
		LastUpdated: now,

		IsAd:     firstResult(rec, "is_ad", "isAd").Bool(),
		HasError: firstResult(rec, "has_error", "hasError").Bool(),
	}

	shopLink := firstString(rec, "product.shop.url", "shop.url", "shop_url")
	if shopLink != "" {
		row.ShopDomain = ShopDomain(shopLink)
	}

	row.TrendingScore = TrendingScore(float64(row.UnitsSold), row.GMV, float64(row.VideoCount), float64(row.CreatorCount))
	row.ViralScore = ViralScore(float64(row.UnitsSold), float64(row.VideoCount), float64(row.CreatorCount))

	return row
}

// Rows normalizes a whole accumulated list, assigning contiguous 1-based
// ranks by position.
func Rows(records []feed.Record, key string, now time.Time) []storage.Row {
	rows := make([]storage.Row, 0, len(records))
	for i, rec := range records {
		rows = append(rows, Normalize(rec, i+1, key, now))
	}
	return rows
}

func firstResult(rec feed.Record, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := rec.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func firstString(rec feed.Record, paths ...string) string {
	return firstResult(rec, paths...).String()
}

func firstInt(rec feed.Record, paths ...string) int64 {
	return firstResult(rec, paths...).Int()
}

func firstFloat(rec feed.Record, paths ...string) float64 {
	return firstResult(rec, paths...).Float()
}

// parsePrice tolerates both numeric prices and display strings ("$1,299.00").
func parsePrice(v gjson.Result) float64 {
	if v.Type == gjson.Number {
		return v.Float()
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return 0
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return f
}

func serializeCategories(rec feed.Record) string {
	v := firstResult(rec, "product.categories", "categories")
	if !v.IsArray() {
		return "[]"
	}
	cats := []string{}
	for _, c := range v.Array() {
		if c.Type == gjson.String {
			cats = append(cats, c.String())
		} else if name := c.Get("name"); name.Exists() {
			cats = append(cats, name.String())
		}
	}
	out, err := json.Marshal(cats)
	if err != nil {
		return "[]"
	}
	return string(out)
}

func serializeObject(rec feed.Record, path string) string {
	v := rec.Get(path)
	if v.IsObject() {
		return v.Raw
	}
	return "{}"
}

func serializeTranscription(rec feed.Record) string {
	v := rec.Get("transcription")
	switch {
	case v.IsObject():
		return v.Raw
	case v.Type == gjson.String && v.String() != "":
		out, err := json.Marshal(map[string]string{"text": v.String()})
		if err != nil {
			return "{}"
		}
		return string(out)
	default:
		return "{}"
	}
}

func parseTimePosted(rec feed.Record) *time.Time {
	v := firstResult(rec, "time_posted", "create_time", "posted_at")
	if !v.Exists() {
		return nil
	}
	if v.Type == gjson.Number {
		sec := v.Int()
		if sec <= 0 {
			return nil
		}
		t := time.Unix(sec, 0).UTC()
		return &t
	}
	if t, err := time.Parse(time.RFC3339, v.String()); err == nil {
		t = t.UTC()
		return &t
	}
	return nil
}
