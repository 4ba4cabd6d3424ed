package fetcher

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
)

// AutoFetcher fetches statically and falls back to the browser when the
// page looks like it needs JavaScript to show its controls.
type AutoFetcher struct {
	static  *StaticFetcher
	dynamic *DynamicFetcher
}

// NewAuto creates a fetcher that detects JS requirements.
func NewAuto(cfg Config) *AutoFetcher {
	return &AutoFetcher{
		static:  NewStatic(cfg),
		dynamic: NewDynamic(cfg),
	}
}

// Fetch tries static first, then dynamic if the static page fails or
// looks like an unrendered application shell.
func (f *AutoFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	page, err := f.static.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return page, ctx.Err()
		}
		logger.Debug("auto fetch falling back to browser", "url", url, "error", err)
		return f.dynamic.Fetch(ctx, url)
	}

	if NeedsBrowser(page.HTML) {
		logger.Debug("auto fetch detected script-rendered page", "url", url)
		return f.dynamic.Fetch(ctx, url)
	}
	return page, nil
}

// Close releases all fetcher resources.
func (f *AutoFetcher) Close() error {
	return f.dynamic.Close()
}

// Mode returns the fetch strategy.
func (f *AutoFetcher) Mode() Mode {
	return ModeAuto
}

// spaRoots are mount points that SPA frameworks leave empty in server HTML.
var spaRoots = []string{
	"#root", // React
	"#app",  // Vue
	"app-root",
	"#__next",
	"#__nuxt",
}

var jsWarnings = []string{"javascript", "enable", "required", "browser"}

var loadingText = []string{"loading", "please wait", "javascript required", "enable javascript"}

// NeedsBrowser reports whether static markup appears to need JS rendering.
func NeedsBrowser(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	for _, sel := range spaRoots {
		root := doc.Find(sel).First()
		if root.Length() > 0 && root.Children().Length() == 0 && strings.TrimSpace(root.Text()) == "" {
			return true
		}
	}
	if doc.Find("[ng-app], [v-cloak], [data-reactroot]").Length() > 0 {
		return true
	}

	noscript := strings.ToLower(doc.Find("noscript").Text())
	for _, w := range jsWarnings {
		if strings.Contains(noscript, w) {
			return true
		}
	}

	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	text := strings.ToLower(strings.Join(strings.Fields(body.Text()), " "))
	if len(text) < 100 {
		if body.Find("form, button, input, a[href]").Length() > 0 {
			return false
		}
		for _, w := range loadingText {
			if strings.Contains(text, w) {
				return true
			}
		}
	}
	return false
}
