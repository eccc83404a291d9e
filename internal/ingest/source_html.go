package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// HTMLFetcher scrapes listing pages using the source's CSS selectors.
type HTMLFetcher struct {
	// Transport overrides the private-address-guarded default.
	Transport http.RoundTripper
}

func (f *HTMLFetcher) Fetch(ctx context.Context, src SourceConfig) ([]RawRecord, error) {
	sel := src.Selectors
	if sel.Container == "" {
		return nil, fmt.Errorf("%s: selector 'container' is required for html sources", src.Name)
	}
	base, err := url.Parse(src.BaseURL)
	if err != nil || base.Hostname() == "" {
		return nil, fmt.Errorf("%s: invalid base url %q", src.Name, src.BaseURL)
	}

	c := f.collector(src, base)

	var out []RawRecord
	var fetchErr error
	var nextPage string
	limit := src.Query.limit(0)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnHTML(sel.Container, func(e *colly.HTMLElement) {
		if limit > 0 && len(out) >= limit {
			return
		}
		if rec := listingRecord(e, sel); rec != nil {
			out = append(out, rec)
		}
	})

	if sel.Next != "" {
		c.OnHTML(sel.Next, func(e *colly.HTMLElement) {
			if href := e.Attr("href"); href != "" {
				nextPage = e.Request.AbsoluteURL(href)
			}
		})
	}

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetch %s: %w", r.Request.URL, err)
	})

	visited := make(map[string]bool)
	current := src.BaseURL
	for page := 0; page < src.Query.pages(); page++ {
		canon := CanonicalizeURL(current)
		if visited[canon] {
			break
		}
		visited[canon] = true
		nextPage = ""

		if err := c.Visit(current); err != nil {
			return nil, fmt.Errorf("visit %s: %w", current, err)
		}
		c.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if fetchErr != nil {
			return nil, fetchErr
		}
		if nextPage == "" || (limit > 0 && len(out) >= limit) {
			break
		}
		current = nextPage
	}
	return out, nil
}

func (f *HTMLFetcher) collector(src SourceConfig, base *url.URL) *colly.Collector {
	c := colly.NewCollector(
		colly.AllowedDomains(base.Hostname()),
		colly.UserAgent(userAgent),
		colly.DetectCharset(),
		colly.MaxBodySize(maxResponseSize),
	)

	delay := time.Second
	if src.Fetch.RateLimitRPS > 0 {
		delay = time.Duration(float64(time.Second) / src.Fetch.RateLimitRPS)
	}
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       delay,
		RandomDelay: delay / 2,
	})

	timeout := 30 * time.Second
	if src.Fetch.TimeoutSeconds > 0 {
		timeout = time.Duration(src.Fetch.TimeoutSeconds) * time.Second
	}
	c.SetRequestTimeout(timeout)

	if f.Transport != nil {
		c.WithTransport(f.Transport)
	} else {
		c.WithTransport(&http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         safeDialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		})
	}
	return c
}

func listingRecord(e *colly.HTMLElement, sel SelectorConfig) RawRecord {
	title := e.Text
	if sel.Title != "" {
		title = e.ChildText(sel.Title)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	linkAttr := sel.LinkAttr
	if linkAttr == "" {
		linkAttr = "href"
	}
	var link string
	if sel.Link == "" || sel.Link == "." {
		link = strings.TrimSpace(e.Attr(linkAttr))
	} else {
		link = strings.TrimSpace(e.ChildAttr(sel.Link, linkAttr))
	}

	rec := RawRecord{"title": title}
	if link != "" {
		canonical := CanonicalizeURL(e.Request.AbsoluteURL(link))
		sum := sha1.Sum([]byte(canonical))
		rec["url"] = canonical
		rec["external_id"] = hex.EncodeToString(sum[:])
	}
	for key, selector := range map[string]string{
		"description": sel.Content,
		"posted_date": sel.Date,
		"due_date":    sel.Due,
		"agency":      sel.Agency,
	} {
		if selector == "" {
			continue
		}
		if v := strings.TrimSpace(e.ChildText(selector)); v != "" {
			rec[key] = v
		}
	}
	return rec
}

// CanonicalizeURL removes common tracking parameters to ensure stable URLs.
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		if strings.HasPrefix(k, "utm_") {
			q.Del(k)
		}
	}
	for _, p := range []string{"fbclid", "gclid", "mc_cid", "mc_eid", "mkt_tok", "ref", "session", "s_cid"} {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
