package sitecheck

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// ResourceMonitor loads a page and reports every finished request whose
// response status is not 200.
type ResourceMonitor struct {
	timeout time.Duration
	idle    time.Duration
	logger  *zap.Logger
}

// NewResourceMonitor creates a monitor using the page timeout and network
// idle window from cfg.
func NewResourceMonitor(cfg BrowserConfig, logger *zap.Logger) *ResourceMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceMonitor{
		timeout: cfg.Timeout,
		idle:    cfg.NetworkIdle,
		logger:  logger,
	}
}

// idleExcludedTypes are the request types that never settle and so cannot
// hold back network idle. Images, fonts and media are waited for.
var idleExcludedTypes = []proto.NetworkResourceType{
	proto.NetworkResourceTypeWebSocket,
	proto.NetworkResourceTypeEventSource,
}

// Check navigates page to url, waits for the network to go idle and returns
// the broken requests in the order they finished. Redirect hops count as
// finished requests with their 3xx status. Requests that failed without a
// response are not reported.
func (m *ResourceMonitor) Check(ctx context.Context, page *rod.Page, url string) ([]BrokenRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	p := page.Context(ctx)
	c := newResponseCollector()

	listenCtx, stopListening := context.WithCancel(ctx)
	wait := page.Context(listenCtx).EachEvent(c.listeners()...)
	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()

	waitIdle := p.WaitRequestIdle(m.idle, nil, nil, idleExcludedTypes)

	m.logger.Info("loading page", zap.String("url", url))
	if err := p.Navigate(url); err != nil {
		stopListening()
		<-done
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	waitIdle()

	stopListening()
	<-done

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("page %s did not go idle: %w", url, err)
	}

	broken := c.Broken()
	for _, b := range broken {
		m.logger.Warn("broken request", zap.String("url", b.URL), zap.Int("status", b.Status))
	}
	m.logger.Info("page loaded",
		zap.String("url", url),
		zap.Int("responses", c.Finished()),
		zap.Int("broken", len(broken)))
	return broken, nil
}

// responseCollector pairs response headers with the loading-finished event
// that completes the same request.
type responseCollector struct {
	mu       sync.Mutex
	pending  map[string]BrokenRequest
	broken   []BrokenRequest
	finished int
}

func newResponseCollector() *responseCollector {
	return &responseCollector{pending: make(map[string]BrokenRequest)}
}

// listeners returns the CDP event callbacks that feed the collector.
func (c *responseCollector) listeners() []interface{} {
	return []interface{}{
		func(ev *proto.NetworkRequestWillBeSent) {
			if ev.RedirectResponse != nil {
				c.onRedirect(ev.RedirectResponse.URL, ev.RedirectResponse.Status)
			}
		},
		func(ev *proto.NetworkResponseReceived) {
			c.onResponse(string(ev.RequestID), ev.Response.URL, ev.Response.Status)
		},
		func(ev *proto.NetworkLoadingFinished) {
			c.onFinished(string(ev.RequestID))
		},
		func(ev *proto.NetworkLoadingFailed) {
			c.onFailed(string(ev.RequestID))
		},
	}
}

// onRedirect records a hop that Chrome followed. The hop shares its request
// id with the next request and gets no finished event of its own.
func (c *responseCollector) onRedirect(url string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.finished++
	if status != http.StatusOK {
		c.broken = append(c.broken, BrokenRequest{URL: url, Status: status})
	}
}

func (c *responseCollector) onResponse(id, url string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[id] = BrokenRequest{URL: url, Status: status}
}

func (c *responseCollector) onFinished(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, ok := c.pending[id]
	if !ok {
		return
	}
	delete(c.pending, id)
	c.finished++
	if resp.Status != http.StatusOK {
		c.broken = append(c.broken, resp)
	}
}

func (c *responseCollector) onFailed(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// Broken returns a copy of the broken requests seen so far.
func (c *responseCollector) Broken() []BrokenRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]BrokenRequest(nil), c.broken...)
}

// Finished returns how many requests finished with a response.
func (c *responseCollector) Finished() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}
