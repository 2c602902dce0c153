package normalize

import (
	"net/url"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// ShopDomain reduces a shop link to its registrable domain, so the same
// storefront groups together in summaries no matter which regional
// subdomain the feed handed out. Unparseable input yields "".
func ShopDomain(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}

	host := link
	if !strings.Contains(link, "://") && strings.Contains(link, ".") {
		link = "https://" + link
	}
	if u, err := url.Parse(link); err == nil && u.Host != "" {
		host = u.Hostname()
	} else {
		host = strings.Split(host, "/")[0]
		host = strings.Split(host, ":")[0]
	}

	if !strings.Contains(host, ".") {
		return ""
	}

	domain, err := publicsuffix.Domain(strings.ToLower(host))
	if err != nil {
		return ""
	}
	return domain
}
