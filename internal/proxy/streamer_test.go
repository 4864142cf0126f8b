package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/plex-offload/plex-offload/internal/server"
)

func TestForwardWrapsConnectionErrors(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	target, _ := url.Parse(upstream.URL + "/x")
	upstream.Close()

	streamer := NewStreamer(server.NewUpstreamClient())
	_, err := streamer.Forward(context.Background(), target, http.MethodGet, nil, nil, 0)
	if !errors.Is(err, ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}
}

func TestForwardStripsHostAndLength(t *testing.T) {
	var got *http.Request
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
	}))
	defer upstream.Close()

	header := http.Header{}
	header.Set("Host", "client.example")
	header.Set("Content-Length", "999")
	header.Set("Connection", "close")
	header.Set("X-Plex-Client-Identifier", "abc")

	target, _ := url.Parse(upstream.URL + "/identity")
	resp, err := NewStreamer(server.NewUpstreamClient()).Forward(context.Background(), target, http.MethodGet, header, nil, 0)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	resp.Body.Close()

	if got.Host == "client.example" {
		t.Fatalf("client host should not be forwarded")
	}
	if got.ContentLength != 0 {
		t.Fatalf("unexpected content length %d", got.ContentLength)
	}
	if got.Header.Get("X-Plex-Client-Identifier") != "abc" {
		t.Fatalf("end-to-end header dropped: %v", got.Header)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestStreamBodyReportsFirstError(t *testing.T) {
	var reported []error
	body := &streamBody{
		body:    io.NopCloser(io.MultiReader(strings.NewReader("ab"), failingReader{})),
		onError: func(err error) { reported = append(reported, err) },
	}

	buf := make([]byte, 8)
	for i := 0; i < 3; i++ {
		if _, err := body.Read(buf); err == nil {
			continue
		}
	}
	if len(reported) != 1 {
		t.Fatalf("expected exactly one report, got %d", len(reported))
	}
	if !errors.Is(reported[0], ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", reported[0])
	}
}

func TestStreamBodyIgnoresEOF(t *testing.T) {
	called := false
	body := &streamBody{
		body:    io.NopCloser(strings.NewReader("abc")),
		onError: func(error) { called = true },
	}
	if _, err := io.ReadAll(body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("EOF must not be reported")
	}
}
