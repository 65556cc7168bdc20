package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstr-eng/shopstr-cache/internal/config"
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/ratelimit"
	"github.com/shopstr-eng/shopstr-cache/internal/source"
)

var upgrader = websocket.Upgrader{}

// fakeRelay answers one subscription per connection with script
type fakeRelay struct {
	t        *testing.T
	script   func(conn *websocket.Conn, subID string)
	gotReq   chan reqFilter
	gotClose chan string
}

func newFakeRelay(t *testing.T, script func(conn *websocket.Conn, subID string)) (*fakeRelay, string) {
	r := &fakeRelay{
		t:        t,
		script:   script,
		gotReq:   make(chan reqFilter, 1),
		gotClose: make(chan string, 1),
	}
	srv := httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(srv.Close)
	return r, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (r *fakeRelay) serve(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var frame []json.RawMessage
	if err := conn.ReadJSON(&frame); err != nil || len(frame) < 3 {
		return
	}
	var subID string
	_ = json.Unmarshal(frame[1], &subID)
	var filter reqFilter
	_ = json.Unmarshal(frame[2], &filter)
	r.gotReq <- filter

	r.script(conn, subID)

	// wait for CLOSE
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var closeFrame []string
	if err := conn.ReadJSON(&closeFrame); err == nil && len(closeFrame) == 2 && closeFrame[0] == labelClose {
		r.gotClose <- closeFrame[1]
	}
}

func event(subID string, rec domain.Record) []interface{} {
	return []interface{}{labelEvent, subID, rec}
}

func TestRelaySource_Fetch(t *testing.T) {
	relay, url := newFakeRelay(t, func(conn *websocket.Conn, subID string) {
		_ = conn.WriteJSON([]interface{}{labelNotice, "welcome"})
		_ = conn.WriteJSON(event(subID, domain.Record{ID: "a", Kind: domain.KindProduct, CreatedAt: 100, Tags: [][]string{{"d", "x"}}}))
		_ = conn.WriteJSON(event("other-sub", domain.Record{ID: "ignored"}))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`["EVENT","`+subID+`",{"kind":"nope"}]`))
		_ = conn.WriteJSON(event(subID, domain.Record{ID: "b", Kind: domain.KindProduct, CreatedAt: 200}))
		_ = conn.WriteJSON([]interface{}{labelEOSE, subID})
	})

	src := NewSource(Config{URL: url, FetchLimit: 250}, nil)
	assert.Equal(t, url, src.Name())

	since := time.Unix(1700000000, 0)
	records, err := src.Fetch(context.Background(), source.Filter{
		Kinds: []domain.Kind{domain.KindProduct},
		Since: &since,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, [][]string{{"d", "x"}}, records[0].Tags)
	assert.Equal(t, []string{url}, records[0].SeenOn)
	assert.Equal(t, "b", records[1].ID)

	filter := <-relay.gotReq
	assert.Equal(t, []domain.Kind{domain.KindProduct}, filter.Kinds)
	require.NotNil(t, filter.Since)
	assert.Equal(t, since.Unix(), *filter.Since)
	assert.Equal(t, 250, filter.Limit, "relay limit applies when the filter sets none")

	select {
	case id := <-relay.gotClose:
		assert.NotEmpty(t, id)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was not closed")
	}
}

func TestRelaySource_Fetch_ThroughProxy(t *testing.T) {
	_, url := newFakeRelay(t, func(conn *websocket.Conn, subID string) {
		_ = conn.WriteJSON(event(subID, domain.Record{ID: "a"}))
		_ = conn.WriteJSON([]interface{}{labelEOSE, subID})
	})

	proxy, err := ratelimit.NewProxy(config.RateLimiterConfig{
		Default: config.RateLimitConfig{RequestsPerSecond: 10, Burst: 10, MaxQueueTime: time.Second},
	}, nil, nil)
	require.NoError(t, err)
	defer func() { _ = proxy.Close() }()

	sources := NewSources([]string{url}, Config{}, proxy)
	require.Len(t, sources, 1)

	records, err := sources[0].Fetch(context.Background(), source.Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRelaySource_Fetch_Closed(t *testing.T) {
	_, url := newFakeRelay(t, func(conn *websocket.Conn, subID string) {
		_ = conn.WriteJSON([]interface{}{labelClosed, subID, "auth-required: sign in first"})
	})

	_, err := NewSource(Config{URL: url}, nil).Fetch(context.Background(), source.Filter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnreachable)
	assert.Contains(t, err.Error(), "auth-required")
}

func TestRelaySource_Fetch_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	_, err := NewSource(Config{URL: url, DialTimeout: time.Second}, nil).Fetch(context.Background(), source.Filter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnreachable)
}

func TestRelaySource_Fetch_ContextTimeout(t *testing.T) {
	release := make(chan struct{})
	_, url := newFakeRelay(t, func(conn *websocket.Conn, subID string) {
		_ = conn.WriteJSON(event(subID, domain.Record{ID: "a"}))
		// never sends EOSE
		<-release
	})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewSource(Config{URL: url}, nil).Fetch(ctx, source.Filter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnreachable)
	assert.Contains(t, err.Error(), context.DeadlineExceeded.Error())
	assert.Less(t, time.Since(start), 2*time.Second)
}
