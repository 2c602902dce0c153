package feed

import "github.com/tidwall/gjson"

// Record is one element of an upstream feed page. The upstream returns
// heterogeneous shapes across endpoint variants, so the raw JSON is kept
// as-is and fields are read lazily. Records are never mutated.
type Record struct {
	Raw string
}

// Get reads a path from the record (gjson syntax).
func (r Record) Get(path string) gjson.Result {
	return gjson.Get(r.Raw, path)
}

// ID returns the record identifier, whichever field the upstream used.
func (r Record) ID() string {
	for _, path := range []string{"id", "video_id", "videoId", "item_id"} {
		if v := gjson.Get(r.Raw, path); v.Exists() {
			return v.String()
		}
	}
	return ""
}

// ProductID returns the nested product identifier, if any.
func (r Record) ProductID() string {
	for _, path := range []string{"product.id", "product.product_id", "product_id", "productId"} {
		if v := gjson.Get(r.Raw, path); v.Exists() {
			return v.String()
		}
	}
	return ""
}

// HasProduct reports whether the record carries a usable product sub-object.
func (r Record) HasProduct() bool {
	p := gjson.Get(r.Raw, "product")
	return p.IsObject() && p.Get("name").Exists()
}
