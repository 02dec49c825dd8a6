package sitecheck

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// PageOpener opens pages for page checks.
type PageOpener interface {
	NewPage() (*Page, error)
	Close() error
}

// Page is a tab in its own incognito browser context. Close disposes the
// context along with the tab.
type Page struct {
	*rod.Page
	context *rod.Browser
}

// Close closes the tab and disposes its browser context.
func (p *Page) Close() error {
	var errs []error
	if p.Page != nil {
		if err := p.Page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page: %w", err))
		}
	}
	if p.context != nil {
		// Disposing a context closes any tab still open in it.
		if err := p.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to dispose browser context: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Browser is a Chrome session shared by page checks. Each check opens its
// own page and closes it when done; Close tears the session down.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher

	mu     sync.Mutex
	closed bool
}

// NewBrowser launches Chrome with cfg and connects to it.
func NewBrowser(cfg BrowserConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("no-sandbox").
		Set("disable-gpu")
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}

	return &Browser{
		browser:  browser,
		launcher: l,
	}, nil
}

// NewPage opens a blank page in a fresh incognito context so that checks do
// not share cache or cookies. Close the page to release the context.
func (b *Browser) NewPage() (*Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("browser is closed")
	}

	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		incognito.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &Page{Page: page, context: incognito}, nil
}

// Contexts reports how many browser contexts Chrome currently holds besides
// the default one.
func (b *Browser) Contexts() (int, error) {
	res, err := proto.TargetGetBrowserContexts{}.Call(b.browser)
	if err != nil {
		return 0, fmt.Errorf("failed to list browser contexts: %w", err)
	}
	return len(res.BrowserContextIDs), nil
}

// Close cleans up browser resources. Safe to call more than once.
// Always call this (via defer) to prevent orphaned Chrome processes.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	err := b.browser.Close()
	b.launcher.Cleanup()
	return err
}
