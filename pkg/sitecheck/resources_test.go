package sitecheck

import (
	"sync"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dispatch delivers ev to the listener that accepts its type, the way Rod's
// EachEvent does.
func dispatch(t *testing.T, c *responseCollector, ev interface{}) {
	t.Helper()

	for _, l := range c.listeners() {
		switch fn := l.(type) {
		case func(*proto.NetworkRequestWillBeSent):
			if e, ok := ev.(*proto.NetworkRequestWillBeSent); ok {
				fn(e)
				return
			}
		case func(*proto.NetworkResponseReceived):
			if e, ok := ev.(*proto.NetworkResponseReceived); ok {
				fn(e)
				return
			}
		case func(*proto.NetworkLoadingFinished):
			if e, ok := ev.(*proto.NetworkLoadingFinished); ok {
				fn(e)
				return
			}
		case func(*proto.NetworkLoadingFailed):
			if e, ok := ev.(*proto.NetworkLoadingFailed); ok {
				fn(e)
				return
			}
		}
	}
	t.Fatalf("no listener for %T", ev)
}

func TestResponseCollector(t *testing.T) {
	c := newResponseCollector()

	c.onResponse("1", "https://example.com/", 200)
	c.onResponse("2", "https://example.com/missing.png", 404)
	c.onResponse("3", "https://example.com/broken.js", 500)
	c.onResponse("4", "https://example.com/aborted.js", 503)

	// Finish out of order; the report follows finish order.
	c.onFinished("3")
	c.onFinished("1")
	c.onFinished("2")
	c.onFailed("4")

	assert.Equal(t, []BrokenRequest{
		{URL: "https://example.com/broken.js", Status: 500},
		{URL: "https://example.com/missing.png", Status: 404},
	}, c.Broken())
	assert.Equal(t, 3, c.Finished())
}

func TestResponseCollector_UnfinishedIgnored(t *testing.T) {
	c := newResponseCollector()

	c.onResponse("1", "https://example.com/slow", 404)
	c.onFinished("unknown")

	assert.Empty(t, c.Broken())
	assert.Equal(t, 0, c.Finished())
}

func TestResponseCollector_NonOKSuccessCodesAreBroken(t *testing.T) {
	c := newResponseCollector()

	c.onResponse("1", "https://example.com/empty", 204)
	c.onResponse("2", "https://example.com/cached", 304)
	c.onFinished("1")
	c.onFinished("2")

	assert.Len(t, c.Broken(), 2)
}

func TestResponseCollector_BrokenReturnsCopy(t *testing.T) {
	c := newResponseCollector()
	c.onResponse("1", "u", 404)
	c.onFinished("1")

	got := c.Broken()
	got[0].Status = 200

	assert.Equal(t, 404, c.Broken()[0].Status)
}

func TestResponseCollector_Concurrent(t *testing.T) {
	c := newResponseCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26)) + string(rune('A'+i/26))
			c.onResponse(id, "u", 404)
			c.onFinished(id)
		}(i)
	}
	wg.Wait()

	assert.Len(t, c.Broken(), 50)
}

func TestNewResourceMonitor(t *testing.T) {
	m := NewResourceMonitor(DefaultBrowserConfig(), nil)

	assert.Equal(t, DefaultBrowserConfig().Timeout, m.timeout)
	assert.Equal(t, DefaultBrowserConfig().NetworkIdle, m.idle)
	assert.NotNil(t, m.logger)
}

func TestResponseCollector_ListenersRecordRedirectHops(t *testing.T) {
	c := newResponseCollector()

	// /static/redirect.js answers 302 and Chrome follows it to /static/app.js
	// under the same request id.
	dispatch(t, c, &proto.NetworkRequestWillBeSent{
		RequestID: "7",
		Request:   &proto.NetworkRequest{URL: "http://localhost/static/redirect.js"},
	})
	dispatch(t, c, &proto.NetworkRequestWillBeSent{
		RequestID:        "7",
		Request:          &proto.NetworkRequest{URL: "http://localhost/static/app.js"},
		RedirectResponse: &proto.NetworkResponse{URL: "http://localhost/static/redirect.js", Status: 302},
	})
	dispatch(t, c, &proto.NetworkResponseReceived{
		RequestID: "7",
		Response:  &proto.NetworkResponse{URL: "http://localhost/static/app.js", Status: 200},
	})
	dispatch(t, c, &proto.NetworkLoadingFinished{RequestID: "7"})

	assert.Equal(t, []BrokenRequest{
		{URL: "http://localhost/static/redirect.js", Status: 302},
	}, c.Broken())
	assert.Equal(t, 2, c.Finished())
}

func TestResponseCollector_ListenersPairResponses(t *testing.T) {
	c := newResponseCollector()

	dispatch(t, c, &proto.NetworkResponseReceived{
		RequestID: "1",
		Response:  &proto.NetworkResponse{URL: "http://localhost/static/slow.png", Status: 404},
	})
	assert.Empty(t, c.Broken(), "not finished yet")

	dispatch(t, c, &proto.NetworkResponseReceived{
		RequestID: "2",
		Response:  &proto.NetworkResponse{URL: "http://localhost/static/font.woff2", Status: 404},
	})
	dispatch(t, c, &proto.NetworkLoadingFailed{RequestID: "2"})
	dispatch(t, c, &proto.NetworkLoadingFinished{RequestID: "1"})

	assert.Equal(t, []BrokenRequest{
		{URL: "http://localhost/static/slow.png", Status: 404},
	}, c.Broken())
}

func TestIdleWaitsForImagesAndFonts(t *testing.T) {
	// A nil list makes Rod skip images, fonts and media when deciding the
	// page is idle, which would cut off slow broken images.
	require.NotNil(t, idleExcludedTypes)
	assert.ElementsMatch(t, []proto.NetworkResourceType{
		proto.NetworkResourceTypeWebSocket,
		proto.NetworkResourceTypeEventSource,
	}, idleExcludedTypes)
	assert.NotContains(t, idleExcludedTypes, proto.NetworkResourceTypeImage)
	assert.NotContains(t, idleExcludedTypes, proto.NetworkResourceTypeFont)
	assert.NotContains(t, idleExcludedTypes, proto.NetworkResourceTypeMedia)
}
