package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
	"github.com/gocolly/colly/v2"
)

// StaticFetcher uses Colly for plain HTTP fetching.
type StaticFetcher struct {
	config Config
}

// NewStatic creates a new static fetcher.
func NewStatic(cfg Config) *StaticFetcher {
	return &StaticFetcher{config: cfg.withDefaults()}
}

// Fetch retrieves page content using Colly.
func (f *StaticFetcher) Fetch(ctx context.Context, targetURL string) (Page, error) {
	logger.Debug("static fetch starting", "url", targetURL)

	page := Page{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}
	if err := ctx.Err(); err != nil {
		return page, err
	}

	// A new collector per request keeps visited-URL state from leaking
	// between fetches of the same page.
	c := colly.NewCollector(colly.UserAgent(f.config.UserAgent))
	c.SetRequestTimeout(f.timeout(ctx))

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		for k, v := range f.config.Headers {
			r.Headers.Set(k, v)
		}
	})

	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.ContentType = r.Headers.Get("Content-Type")
		page.HTML = string(r.Body)
		logger.Debug("static fetch response received",
			"status", r.StatusCode,
			"content_type", page.ContentType,
			"body_size", len(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 400 {
			page.StatusCode = r.StatusCode
			fetchErr = fmt.Errorf("%w: %d from %s", ErrStatus, r.StatusCode, targetURL)
			return
		}
		fetchErr = fmt.Errorf("fetch %s: %w", targetURL, err)
	})

	if err := c.Visit(targetURL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return page, ctxErr
		}
		if fetchErr != nil {
			return page, fetchErr
		}
		return page, fmt.Errorf("visit %s: %w", targetURL, err)
	}
	if fetchErr != nil {
		logger.Debug("static fetch failed", "url", targetURL, "error", fetchErr)
		return page, fetchErr
	}

	page.Title = pageTitle(page.HTML)
	logger.Debug("static fetch complete", "url", targetURL, "title", page.Title)
	return page, nil
}

// timeout is the configured timeout, shortened to the context deadline.
func (f *StaticFetcher) timeout(ctx context.Context) time.Duration {
	timeout := f.config.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 && left < timeout {
			timeout = left
		}
	}
	return timeout
}

// Close releases resources.
func (f *StaticFetcher) Close() error {
	return nil
}

// Mode returns the fetch strategy.
func (f *StaticFetcher) Mode() Mode {
	return ModeStatic
}

// pageTitle returns the document title, or "" when the markup has none.
func pageTitle(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}
