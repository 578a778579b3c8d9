//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skypescrape/internal/browser"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const chatPage = `<html><body>
<ul>
  <li role="listitem" id="c1">Alice</li>
  <li role="listitem" id="c2">Bob</li>
</ul>
<div id="history" style="height:100px;overflow:auto">
  <div role="region" aria-label="Alice, Hello, there, envoyé à 14:32">m1</div>
  <div role="region" aria-label="Bob, Salut, envoyé à 14:33">m2</div>
  <div style="height:2000px"></div>
</div>
<button title="Retour" id="back">Retour</button>
</body></html>`

func newChatServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, chatPage)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRodDriver_Integration(t *testing.T) {
	ts := newChatServer(t)

	cfg := browser.DefaultConfig()
	cfg.Headless = true
	cfg.NavigationTimeoutMs = 10000

	mgr := browser.NewSessionManager(cfg, zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	err := browser.WithDriver(ctx, mgr, ts.URL, func(d browser.Driver) error {
		items, err := d.WaitForAll(ctx, browser.CSS("[role='listitem']"), 5*time.Second)
		require.NoError(t, err)
		require.Len(t, items, 2)

		regions, err := d.FindAll(ctx, browser.XPath("//div[@role='region']"))
		require.NoError(t, err)
		require.Len(t, regions, 2)

		label, err := d.Attribute(ctx, regions[0], "aria-label")
		require.NoError(t, err)
		require.Equal(t, "Alice, Hello, there, envoyé à 14:32", label)

		missing, err := d.Attribute(ctx, regions[0], "data-missing")
		require.NoError(t, err)
		require.Empty(t, missing)

		history, err := d.WaitFor(ctx, browser.CSS("#history"), 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, d.ScrollToEnd(ctx, history))

		back, err := d.WaitClickable(ctx, browser.CSS("[title='Retour']"), 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, d.Click(ctx, back))

		_, err = d.WaitFor(ctx, browser.CSS("#does-not-exist"), 500*time.Millisecond)
		require.ErrorIs(t, err, browser.ErrTimeout)
		return nil
	})
	require.NoError(t, err)
	require.False(t, mgr.IsConnected(), "WithDriver must release the browser")
}
