package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
	"github.com/chromedp/chromedp"
)

// DynamicFetcher renders pages in headless Chrome so that script-built
// markup is classified as the user sees it.
type DynamicFetcher struct {
	config Config

	once        sync.Once
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
}

// NewDynamic creates a dynamic fetcher. The browser is started on first use.
func NewDynamic(cfg Config) *DynamicFetcher {
	return &DynamicFetcher{config: cfg.withDefaults()}
}

func (f *DynamicFetcher) allocator() context.Context {
	f.once.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.UserAgent(f.config.UserAgent),
			chromedp.WindowSize(1920, 1080),
		)
		path := f.config.ChromePath
		if path == "" {
			path = FindChrome()
		}
		if path != "" {
			opts = append(opts, chromedp.ExecPath(path))
		}
		f.allocCtx, f.cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
		logger.Debug("dynamic fetcher browser allocator created", "user_agent", f.config.UserAgent, "chrome", path)
	})
	return f.allocCtx
}

// Fetch navigates to targetURL and returns the rendered document.
func (f *DynamicFetcher) Fetch(ctx context.Context, targetURL string) (Page, error) {
	logger.Debug("dynamic fetch starting", "url", targetURL)

	page := Page{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}
	if err := ctx.Err(); err != nil {
		return page, err
	}

	browserCtx, cancelBrowser := chromedp.NewContext(f.allocator())
	defer cancelBrowser()

	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, f.config.Timeout)
	defer cancelTimeout()

	// The browser context is rooted in the allocator, so the caller's
	// cancellation has to be forwarded by hand.
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var html, title string
	actions := []chromedp.Action{
		chromedp.Navigate(targetURL),
		chromedp.WaitVisible(f.config.WaitForSelector),
	}
	if f.config.WaitDuration > 0 {
		actions = append(actions, chromedp.Sleep(f.config.WaitDuration))
	}
	actions = append(actions,
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
	)

	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return page, ctxErr
		}
		logger.Debug("dynamic fetch browser automation failed", "url", targetURL, "error", err)
		return page, fmt.Errorf("browser automation failed: %w", err)
	}

	page.HTML = html
	page.Title = title
	page.StatusCode = 200 // chromedp doesn't easily expose status codes
	page.ContentType = "text/html"

	logger.Debug("dynamic fetch complete", "url", targetURL, "html_size", len(html), "title", title)
	return page, nil
}

// Close releases browser resources.
func (f *DynamicFetcher) Close() error {
	if f.cancelAlloc != nil {
		f.cancelAlloc()
	}
	return nil
}

// Mode returns the fetch strategy.
func (f *DynamicFetcher) Mode() Mode {
	return ModeDynamic
}
