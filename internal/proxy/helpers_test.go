package proxy

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/plex-offload/plex-offload/internal/config"
	"github.com/plex-offload/plex-offload/internal/metrics"
	"github.com/plex-offload/plex-offload/internal/server"
)

const testLibraryRoot = "/data"

// recordedRequest 捕获上游收到的方法/路径/查询/头/正文，便于断言代理行为。
type recordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Headers  http.Header
	Body     []byte
}

type upstreamStub struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

func newUpstreamStub(t *testing.T, handler http.HandlerFunc) *upstreamStub {
	t.Helper()
	stub := &upstreamStub{}
	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		stub.mu.Lock()
		stub.requests = append(stub.requests, recordedRequest{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Headers:  r.Header.Clone(),
			Body:     body,
		})
		stub.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if handler != nil {
			handler(w, r)
		}
	}))
	t.Cleanup(stub.Close)
	return stub
}

func (s *upstreamStub) Requests() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

type testEnv struct {
	app     *fiber.App
	state   *State
	origin  *upstreamStub
	gateway *upstreamStub
	metrics *metrics.Metrics
	logs    *syncBuffer
}

// syncBuffer 允许 fasthttp 的流式阶段与测试 goroutine 同时写读日志。
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

func newTestEnv(t *testing.T, originHandler, gatewayHandler http.HandlerFunc) *testEnv {
	t.Helper()

	origin := newUpstreamStub(t, originHandler)
	gateway := newUpstreamStub(t, gatewayHandler)
	return newTestEnvWithURLs(t, origin, gateway, origin.URL, gateway.URL+"/")
}

func newTestEnvWithURLs(t *testing.T, origin, gateway *upstreamStub, originURL, gatewayURL string) *testEnv {
	t.Helper()

	targets, err := server.NewTargets(&config.Config{
		OriginURL:   originURL,
		LibraryPath: testLibraryRoot,
		GatewayURL:  gatewayURL,
	})
	if err != nil {
		t.Fatalf("targets error: %v", err)
	}

	logs := &syncBuffer{}
	logger := logrus.New()
	logger.SetOutput(logs)
	logger.SetLevel(logrus.DebugLevel)

	state := NewState(targets)
	m := metrics.New(prometheus.NewRegistry())
	handler := NewHandler(NewStreamer(server.NewUpstreamClient()), state, logger, m)

	app, err := server.NewApp(server.AppOptions{
		Logger:   logger,
		Metadata: server.ProxyHandlerFunc(handler.HandleMetadata),
		Fallback: server.ProxyHandlerFunc(handler.HandleFallback),
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}

	return &testEnv{
		app:     app,
		state:   state,
		origin:  origin,
		gateway: gateway,
		metrics: m,
		logs:    logs,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body error: %v", err)
	}
	return resp, body
}

func get(target, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	return req
}
