package search

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// DuckDuckGoURL is the JavaScript-free results page.
const DuckDuckGoURL = "https://html.duckduckgo.com/html/"

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// maxPageBytes bounds how much of a results page is read.
const maxPageBytes = 5 << 20

// DuckDuckGo scrapes the DuckDuckGo HTML endpoint. It needs no API key.
type DuckDuckGo struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// DuckDuckGoOption configures a DuckDuckGo provider.
type DuckDuckGoOption func(*DuckDuckGo)

// WithDuckDuckGoURL overrides the results page URL.
func WithDuckDuckGoURL(u string) DuckDuckGoOption {
	return func(d *DuckDuckGo) { d.baseURL = u }
}

// WithDuckDuckGoClient sets the HTTP client.
func WithDuckDuckGoClient(c *http.Client) DuckDuckGoOption {
	return func(d *DuckDuckGo) { d.httpClient = c }
}

// NewDuckDuckGo creates the provider. timeout bounds each request.
func NewDuckDuckGo(timeout time.Duration, opts ...DuckDuckGoOption) *DuckDuckGo {
	d := &DuckDuckGo{
		baseURL:    DuckDuckGoURL,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	form := url.Values{"q": {query}}
	if opts.Language != "" {
		// kl takes region-language pairs; "wt-wt" is no region.
		form.Set("kl", "wt-"+opts.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "duckduckgo: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "duckduckgo: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("duckduckgo: HTTP %d", resp.StatusCode)
	}

	return parseDuckDuckGo(io.LimitReader(resp.Body, maxPageBytes), opts.count())
}

// parseDuckDuckGo extracts up to limit organic results from a results page.
func parseDuckDuckGo(r io.Reader, limit int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "duckduckgo: parse page")
	}

	results := make([]Result, 0, limit)
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		target := resolveRedirect(href)
		title := collapseSpace(link.Text())
		if target == "" || title == "" {
			return true
		}
		results = append(results, Result{
			Title:   title,
			URL:     target,
			Snippet: collapseSpace(s.Find(".result__snippet").First().Text()),
		})
		return len(results) < limit
	})
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's //duckduckgo.com/l/?uddg=<url> links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/y.js") {
			// Sponsored click tracker.
			return ""
		}
		return u.String()
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
