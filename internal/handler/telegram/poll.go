package telegram

import (
	"context"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// pollClient ties getUpdates requests to the context of Run so a pending
// long poll is aborted on shutdown. Other calls keep their own lifetime so
// replies still go out while queued events drain.
type pollClient struct {
	tgbotapi.HTTPClient

	mu  sync.RWMutex
	ctx context.Context
}

func (c *pollClient) bind(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
}

func (c *pollClient) Do(req *http.Request) (*http.Response, error) {
	if strings.HasSuffix(req.URL.Path, "/getUpdates") {
		c.mu.RLock()
		ctx := c.ctx
		c.mu.RUnlock()
		if ctx != nil {
			req = req.WithContext(ctx)
		}
	}
	return c.HTTPClient.Do(req)
}
