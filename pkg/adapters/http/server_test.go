package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/pkg/adapters/memory"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/dsl"
	"github.com/aretw0/cadence/pkg/runner"
	"github.com/aretw0/cadence/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tavern() *domain.Program {
	b := dsl.New("tavern")
	b.Var("gold", domain.Number(5))
	b.Line("greet", "Welcome!").At(3, "sfx:door")
	b.Choice(dsl.Opt("Drink", "drink"), dsl.Opt("Leave", "leave")).SaveTo("pick")
	b.Label("drink").Add("gold", domain.Number(-2)).Line("drink", "Cheers. {gold} left.").End()
	b.Label("leave").Line("bye", "Bye.").End()
	return b.MustProgram()
}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *session.Manager) {
	t.Helper()
	loader, err := memory.NewFromPrograms(tavern())
	require.NoError(t, err)
	eng, err := cadence.New("", cadence.WithLoader(loader))
	require.NoError(t, err)
	mgr := session.NewManager(eng, memory.NewStore(), session.WithAutoSave(true))

	handler, err := NewHandler(mgr, opts...)
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, mgr
}

func call(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decodeStep(t *testing.T, data []byte) runner.StepResponse {
	t.Helper()
	var out runner.StepResponse
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func TestServer_Playthrough(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := call(t, http.MethodPost, srv.URL+"/sessions", map[string]any{"program": "tavern", "session_id": "p1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	created := decodeStep(t, body)
	assert.Equal(t, "p1", created.SessionID)
	assert.Equal(t, domain.StateIdle, created.Snapshot.State)

	base := srv.URL + "/sessions/p1"

	resp, body = call(t, http.MethodPost, base+"/step", map[string]int{"progress": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "Welcome!", decodeStep(t, body).Snapshot.Text)

	resp, body = call(t, http.MethodPost, base+"/step", map[string]int{"progress": 8})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	step := decodeStep(t, body)
	assert.Equal(t, domain.StateAwaitingChoice, step.Snapshot.State)
	assert.Equal(t, []string{"Drink", "Leave"}, step.Snapshot.Options)
	require.Len(t, step.Snapshot.PendingEvents, 1)
	assert.Equal(t, "sfx:door", step.Snapshot.PendingEvents[0].ID)

	resp, body = call(t, http.MethodPost, base+"/choice", map[string]int{"index": 7})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "invalid choice 7")

	resp, body = call(t, http.MethodPost, base+"/choice", map[string]int{"index": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "Cheers. 3 left.", decodeStep(t, body).Snapshot.Text)

	resp, body = call(t, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.True(t, decodeStep(t, body).Snapshot.LineComplete)

	resp, body = call(t, http.MethodPost, base+"/step", map[string]int{"progress": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.True(t, decodeStep(t, body).Terminal)

	resp, _ = call(t, http.MethodPost, base+"/step", map[string]int{"progress": 0})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = call(t, http.MethodGet, base+"/variables", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var vars domain.VariableSnapshot
	require.NoError(t, json.Unmarshal(body, &vars))
	assert.Equal(t, domain.Number(3), vars["gold"])
	assert.Equal(t, domain.Number(0), vars["pick"])
}

func TestServer_ConcurrentReadsAndSteps(t *testing.T) {
	srv, mgr := newTestServer(t)
	_, err := mgr.Create(context.Background(), "tavern", cadence.WithSessionID("c1"))
	require.NoError(t, err)
	base := srv.URL + "/sessions/c1"

	send := func(method, url, body string) int {
		req, err := http.NewRequest(method, url, strings.NewReader(body))
		if err != nil {
			return 0
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return 0
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.Equal(t, http.StatusOK, send(http.MethodGet, base, ""))
		}()
		go func() {
			defer wg.Done()
			assert.Equal(t, http.StatusOK, send(http.MethodPost, base+"/step", fmt.Sprintf(`{"progress": %d}`, i)))
		}()
	}
	wg.Wait()

	snap, err := mgr.View(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "greet", snap.LineID)
}

func TestServer_Variables(t *testing.T) {
	srv, mgr := newTestServer(t)
	_, err := mgr.Create(context.Background(), "tavern", cadence.WithSessionID("v1"))
	require.NoError(t, err)
	base := srv.URL + "/sessions/v1"

	resp, body := call(t, http.MethodPut, base+"/variables", map[string]any{
		"gold": map[string]any{"type": "number", "value": 40},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))

	_, body = call(t, http.MethodPost, base+"/step", map[string]int{"progress": 0})
	_, _ = call(t, http.MethodPost, base+"/step", map[string]int{"progress": 8})
	_, body = call(t, http.MethodPost, base+"/choice", map[string]int{"index": 0})
	assert.Equal(t, "Cheers. 38 left.", decodeStep(t, body).Snapshot.Text)

	resp, body = call(t, http.MethodPut, base+"/variables", map[string]any{
		"gold": map[string]any{"type": "money", "value": 1},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
}

func TestServer_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := call(t, http.MethodPost, srv.URL+"/sessions", map[string]any{"session_id": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "program")

	resp, _ = call(t, http.MethodPost, srv.URL+"/sessions", map[string]any{"program": "tavern", "session_id": "neg"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = call(t, http.MethodPost, srv.URL+"/sessions/neg/step", map[string]int{"progress": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := call(t, http.MethodGet, srv.URL+"/sessions/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = call(t, http.MethodPost, srv.URL+"/sessions", map[string]any{"program": "nowhere"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = call(t, http.MethodPost, srv.URL+"/sessions", map[string]any{"program": "tavern", "session_id": "dup"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = call(t, http.MethodPost, srv.URL+"/sessions", map[string]any{"program": "tavern", "session_id": "dup"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = call(t, http.MethodPost, srv.URL+"/sessions/dup/choice", map[string]int{"index": 0})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "not awaiting a choice")

	resp, _ = call(t, http.MethodDelete, srv.URL+"/sessions/dup", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = call(t, http.MethodGet, srv.URL+"/sessions/dup", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Listings(t *testing.T) {
	srv, mgr := newTestServer(t)
	_, err := mgr.Create(context.Background(), "tavern", cadence.WithSessionID("a"))
	require.NoError(t, err)

	_, body := call(t, http.MethodGet, srv.URL+"/programs", nil)
	assert.JSONEq(t, `["tavern"]`, string(body))

	_, body = call(t, http.MethodGet, srv.URL+"/sessions", nil)
	assert.JSONEq(t, `["a"]`, string(body))

	_, body = call(t, http.MethodGet, srv.URL+"/health", nil)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	_, body = call(t, http.MethodGet, srv.URL+"/info", nil)
	assert.Contains(t, string(body), `"api_version":"1.0.0"`)

	resp, body := call(t, http.MethodGet, srv.URL+"/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "openapi: 3.0.3")
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "cadence_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv, _ := newTestServer(t, WithGatherer(reg))
	resp, body := call(t, http.MethodGet, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "cadence_test_total 1")
}

type recordingDispatcher struct{ ids chan string }

func (d recordingDispatcher) Dispatch(_ context.Context, ev domain.EventPayload) error {
	d.ids <- ev.ID
	return nil
}

func TestServer_SessionStream(t *testing.T) {
	rec := recordingDispatcher{ids: make(chan string, 4)}
	srv, mgr := newTestServer(t, WithDispatcher(rec))
	_, err := mgr.Create(context.Background(), "tavern", cadence.WithSessionID("s1"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?session_id=s1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	require.Equal(t, "event: ping", <-lines)

	_, _ = call(t, http.MethodPost, srv.URL+"/sessions/s1/step", map[string]int{"progress": 0})
	_, _ = call(t, http.MethodPost, srv.URL+"/sessions/s1/step", map[string]int{"progress": 8})
	_, _ = call(t, http.MethodPost, srv.URL+"/sessions/s1/choice", map[string]int{"index": 1})

	var data []string
	timeout := time.After(2 * time.Second)
	for len(data) < 2 {
		select {
		case l, ok := <-lines:
			require.True(t, ok, "stream closed early")
			if strings.HasPrefix(l, "data: {") {
				data = append(data, strings.TrimPrefix(l, "data: "))
			}
		case <-timeout:
			t.Fatalf("stream messages missing, got %v", data)
		}
	}

	assert.JSONEq(t, `{"type":"event","event":{"id":"sfx:door"}}`, data[0])
	assert.JSONEq(t, `{"type":"variables","diff":{"changed":{"pick":{"type":"number","value":1}}}}`, data[1])
	assert.Equal(t, "sfx:door", <-rec.ids, "host dispatcher sees the event too")
}
