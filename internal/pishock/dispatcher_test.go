package pishock

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pishocker/internal/eventbus"
	"pishocker/internal/pishock/mocks"
	"pishocker/internal/task/engine"
	logx "pishocker/pkg/logx"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// inlineExec runs tasks on the caller's goroutine so tests can assert right after Dispatch.
type inlineExec struct{}

func (inlineExec) Enqueue(t engine.Task) error {
	_ = t.Run(context.Background())
	return nil
}

type captured struct {
	path  string
	query string
	ctype string
	body  map[string]any
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, <-chan captured) {
	t.Helper()
	ch := make(chan captured, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(b, &m)
		ch <- captured{path: r.URL.Path, query: r.URL.RawQuery, ctype: r.Header.Get("Content-Type"), body: m}
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ignored response body"))
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func sampleRequest(auth AuthMethod) DispatchRequest {
	return DispatchRequest{
		DisplayName: "Nick",
		Operation:   Operation{Kind: Shock, Intensity: 1, Duration: 1},
		Warning:     WarningWindow{Active: true, MinDelay: 2, MaxDelay: 5},
		Auth:        auth,
	}
}

func TestDispatch_IDKeyPostsToLinkOperate(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusOK)
	client := NewClient(time.Second, WithEndpoints(srv.URL+"/PiShock/LinkOperate", srv.URL+"/api/apioperate/"))
	d := NewDispatcher(client, inlineExec{}, logx.Nop(), nil)

	ticket := d.Dispatch(sampleRequest(IDKey{ID: "dev", Key: "none"}))
	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, MethodIDKey, ticket.Method)

	c := <-got
	assert.Equal(t, "/PiShock/LinkOperate", c.path)
	assert.Equal(t, "application/json", c.ctype)
	assert.Equal(t, "s", c.body["Op"])
	assert.Equal(t, "Nick", c.body["Username"])
	assert.Contains(t, c.body, "Warning")
}

func TestDispatch_APIShareCodeGoesThroughProxy(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusOK)
	client := NewClient(time.Second,
		WithCORSProxy(srv.URL+"/relay?url="),
		WithEndpoints("", "https://do.pishock.com/api/apioperate/"),
	)
	d := NewDispatcher(client, inlineExec{}, logx.Nop(), nil)

	d.Dispatch(sampleRequest(APIShareCode{APIKey: "k", ShareCode: "c", Username: "u"}))

	c := <-got
	assert.Equal(t, "/relay", c.path)
	assert.Equal(t, "url=https://do.pishock.com/api/apioperate/", c.query)
	assert.Equal(t, float64(0), c.body["Op"])
	assert.Equal(t, "Nick", c.body["Name"])
	assert.Equal(t, "u", c.body["Username"])
	assert.NotContains(t, c.body, "Warning")
}

func TestDispatch_TransportFailureIsLoggedAndSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cases := []struct {
		name string
		auth AuthMethod
	}{
		{"id key", IDKey{ID: "dev", Key: "none"}},
		{"api share code", APIShareCode{APIKey: "k", ShareCode: "c", Username: "u"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var logs syncBuffer
			client := NewClient(time.Second, WithCORSProxy(url+"/relay?url="), WithEndpoints(url+"/link", url+"/api"))
			d := NewDispatcher(client, inlineExec{}, logx.NewWriter(&logs, "debug"), nil)

			var ticket Ticket
			require.NotPanics(t, func() {
				ticket = d.Dispatch(sampleRequest(tc.auth))
			})
			assert.NotEmpty(t, ticket.ID)
			assert.Equal(t, tc.auth.Method(), ticket.Method)
			assert.Contains(t, logs.String(), "PiShock Error:")
			assert.Contains(t, logs.String(), ticket.ID)
		})
	}
}

func TestDispatch_QueuedIsPublishedBeforeOutcome(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusOK)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	client := NewClient(time.Second, WithEndpoints(srv.URL+"/link", srv.URL+"/api"))
	d := NewDispatcher(client, inlineExec{}, logx.Nop(), bus)
	d.Dispatch(sampleRequest(IDKey{ID: "dev", Key: "none"}))
	<-got

	var types []string
	for len(types) < 2 {
		select {
		case e := <-events:
			types = append(types, e.Type)
		case <-time.After(time.Second):
			t.Fatalf("missing events, got %v", types)
		}
	}
	assert.Equal(t, []string{eventbus.DispatchQueued, eventbus.DispatchSent}, types)
}

func TestDispatch_Non2xxIsNotAnError(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusInternalServerError)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	var logs syncBuffer
	client := NewClient(time.Second, WithEndpoints(srv.URL+"/link", ""))
	d := NewDispatcher(client, inlineExec{}, logx.NewWriter(&logs, "debug"), bus)

	d.Dispatch(sampleRequest(IDKey{ID: "dev", Key: "none"}))
	<-got

	assert.NotContains(t, logs.String(), "PiShock Error:")
	var sent *DispatchEvent
	for len(events) > 0 {
		ev := <-events
		if ev.Type == eventbus.DispatchSent {
			de := ev.Data.(DispatchEvent)
			sent = &de
		}
	}
	require.NotNil(t, sent)
	assert.Equal(t, http.StatusInternalServerError, sent.Status)
}

func TestDispatch_RefusedTaskStillReturnsTicket(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	exec.EXPECT().Enqueue(gomock.Any()).Return(engine.ErrStopped).Times(1)

	var logs syncBuffer
	d := NewDispatcher(NewClient(0), exec, logx.NewWriter(&logs, "debug"), nil)

	ticket := d.Dispatch(sampleRequest(APIShareCode{APIKey: "k", ShareCode: "c", Username: "u"}))
	assert.NotEmpty(t, ticket.ID)
	assert.Contains(t, logs.String(), "PiShock Error:")
	assert.Contains(t, logs.String(), engine.ErrStopped.Error())
}

func TestDispatch_TaskCarriesTicketID(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)

	var task engine.Task
	exec.EXPECT().Enqueue(gomock.Any()).DoAndReturn(func(t engine.Task) error {
		task = t
		return nil
	})

	d := NewDispatcher(NewClient(0), exec, logx.Nop(), nil)
	ticket := d.Dispatch(sampleRequest(IDKey{ID: "dev", Key: "none"}))

	assert.Equal(t, ticket.ID, task.ID)
	assert.Equal(t, "pishock.dispatch", task.Name)
	assert.NotNil(t, task.Run)
}

func TestDispatch_NoAuthIsLogged(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl) // no calls expected

	var logs syncBuffer
	d := NewDispatcher(NewClient(0), exec, logx.NewWriter(&logs, "debug"), nil)
	d.Dispatch(DispatchRequest{DisplayName: "x"})
	assert.Contains(t, logs.String(), "PiShock Error:")
}

func TestDispatch_NMatchesGiveNPosts(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusOK)
	eng := engine.New(engine.Config{Enabled: true, Workers: 4}, logx.Nop(), nil)
	eng.Start(context.Background())
	defer eng.Stop(context.Background())

	client := NewClient(time.Second, WithEndpoints(srv.URL+"/link", ""))
	d := NewDispatcher(client, eng, logx.Nop(), nil)

	const n = 10
	for i := 0; i < n; i++ {
		d.Dispatch(sampleRequest(IDKey{ID: "dev", Key: "none"}))
	}
	for i := 0; i < n; i++ {
		select {
		case c := <-got:
			assert.True(t, strings.HasSuffix(c.path, "/link"))
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d posts arrived", i, n)
		}
	}
}
