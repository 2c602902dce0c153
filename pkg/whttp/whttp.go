package whttp

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
)

const defaultTimeout = 20 * time.Second

var proxyFunc func(*http.Request) (*url.URL, error)

// SetupProxy routes clients created by this package through the given HTTP
// proxy. Useful for inspecting upstream traffic.
func SetupProxy(proxy string) error {
	u, err := url.Parse(proxy)
	if err != nil {
		return err
	}
	proxyFunc = http.ProxyURL(u)
	return nil
}

type Header struct {
	Name  string
	Value string
}

type Request struct {
	URL     string
	Method  string
	Body    string
	Headers []Header
	Timeout time.Duration
}

type Response struct {
	StatusCode     int
	ResponseLength int
	HTTPTitle      string
	BodyString     string
}

// SendHTTPRequest issues req with the given retryablehttp client. A nil
// client gets a plain one-shot client with the default timeout; transport
// retries beyond that are the caller's concern.
func SendHTTPRequest(wReq *Request, client *retryablehttp.Client) (*Response, error) {
	var body io.Reader
	if wReq.Body != "" {
		body = strings.NewReader(wReq.Body)
	}

	req, err := retryablehttp.NewRequest(wReq.Method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0")
	req.Header.Set("Accept", "application/json, */*")
	req.Header.Set("Accept-Language", "en")

	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	if client == nil {
		client = retryablehttp.NewClient()
		client.Logger = nil
		client.RetryMax = 0
		if proxyFunc != nil {
			if transport, ok := client.HTTPClient.Transport.(*http.Transport); ok {
				transport.Proxy = proxyFunc
			}
		}
	}
	timeout := wReq.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	client.HTTPClient.Timeout = timeout

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes := &Response{
		StatusCode: resp.StatusCode,
		BodyString: string(bodyBytes),
	}

	// Upstream occasionally answers with an HTML error page (WAF, maintenance);
	// the page title is the only useful thing to log from those.
	if title, ok := getHTMLTitle(wRes.BodyString); ok {
		wRes.HTTPTitle = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
	}

	wRes.ResponseLength = utf8.RuneCountInString(wRes.BodyString)
	return wRes, nil
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

func getHTMLTitle(requestBody string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(requestBody))
	if err != nil {
		return "", false
	}

	return traverse(doc)
}
