package feed

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/tokradar/tokradar/pkg/whttp"
)

// EnrichRecord fills in a missing product sub-object by fetching the
// record's public share page and reading the JSON the upstream embeds in
// its #__NEXT_DATA__ script tag. Strictly best-effort: any failure returns
// the record unchanged.
func (c *Client) EnrichRecord(ctx context.Context, rec Record) (Record, bool) {
	if rec.HasProduct() {
		return rec, false
	}
	id := rec.ProductID()
	if id == "" {
		id = rec.ID()
	}
	if id == "" {
		return rec, false
	}
	if err := ctx.Err(); err != nil {
		return rec, false
	}

	res, err := whttp.SendHTTPRequest(&whttp.Request{
		Method:  "GET",
		URL:     c.cfg.BaseURL + "/product/" + id,
		Headers: c.authHeaders(),
		Timeout: c.cfg.Timeout,
	}, nil)
	if err != nil || res.StatusCode != 200 {
		c.log.Debugf("enrichment fetch failed for %s", id)
		return rec, false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.BodyString))
	if err != nil {
		return rec, false
	}

	enriched := rec
	applied := false
	doc.Find("#__NEXT_DATA__").Each(func(_ int, s *goquery.Selection) {
		pageJSON := s.Contents().Text()
		product := gjson.Get(pageJSON, "props.pageProps.product")
		if !product.IsObject() {
			return
		}
		merged, err := sjson.SetRaw(enriched.Raw, "product", product.Raw)
		if err != nil {
			return
		}
		enriched = Record{Raw: merged}
		applied = true
	})

	if applied {
		c.log.Debugf("enriched record %s from share page", id)
	}
	return enriched, applied
}
