package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders pages in a headless Chrome instance so content
// produced by JavaScript is captured. Each fetch opens a new tab.
type BrowserFetcher struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	wait          time.Duration
	timeout       time.Duration
}

// NewBrowserFetcher starts the browser. Close must be called to stop it.
func NewBrowserFetcher(headless bool, userAgent string, wait, timeout time.Duration) (*BrowserFetcher, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("headless", headless),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserFetcher{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		wait:          wait,
		timeout:       timeout,
	}, nil
}

// Fetch navigates to rawURL and returns the rendered document.
func (b *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	timeoutCtx, cancel := context.WithTimeout(tabCtx, b.timeout)
	defer cancel()

	tasks := chromedp.Tasks{
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
	}
	if b.wait > 0 {
		tasks = append(tasks, chromedp.Sleep(b.wait))
	}

	var html, location string
	tasks = append(tasks,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html),
	)

	if err := chromedp.Run(timeoutCtx, tasks); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("render %s: %w", rawURL, ctxErr)
		}
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("render %s: %w", rawURL, context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("render %s: %w", rawURL, err)
	}
	if location == "" {
		location = rawURL
	}

	return &Document{
		URL:         location,
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte(html),
	}, nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() error {
	b.cancelBrowser()
	b.cancelAlloc()
	return nil
}
