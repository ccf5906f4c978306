package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/slaug/slaug/internal/config"
)

type fakeExpander struct {
	calls    int
	lastText string
	lastChan string
	lastSrc  string
	reply    string
}

func (f *fakeExpander) Expand(ctx context.Context, text, channel, source string) string {
	f.calls++
	f.lastText = text
	f.lastChan = channel
	f.lastSrc = source
	return f.reply
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(cfg config.Config, expander Expander) http.Handler {
	return NewRouter(Dependencies{Config: cfg, Expander: expander, Logger: testLogger()})
}

func TestExpandJSONBody(t *testing.T) {
	expander := &fakeExpander{reply: "Test *AT-42* <url|A &amp; B>"}
	handler := newHandler(config.Config{Secret: "hook"}, expander)

	body, _ := json.Marshal(map[string]string{
		"text":       "AT-42",
		"channel_id": "C100",
		"thread_ts":  "171.001",
	})
	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", res.Code, res.Body.String())
	}
	var payload map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["text"] != expander.reply {
		t.Fatalf("unexpected text: %q", payload["text"])
	}
	if payload["thread_ts"] != "171.001" {
		t.Fatalf("thread_ts not echoed: %+v", payload)
	}
	if expander.lastText != "AT-42" || expander.lastChan != "C100" || expander.lastSrc != "webhook" {
		t.Fatalf("unexpected expander input: %+v", expander)
	}
}

func TestExpandFormBody(t *testing.T) {
	expander := &fakeExpander{reply: "line"}
	handler := newHandler(config.Config{Secret: "hook"}, expander)

	form := url.Values{"text": {"see D-2"}, "channel_id": {"C7"}}
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if expander.lastText != "see D-2" || expander.lastChan != "C7" {
		t.Fatalf("unexpected expander input: %+v", expander)
	}
}

func TestEmptyTextYieldsEmptyBody(t *testing.T) {
	expander := &fakeExpander{reply: "should not be used"}
	handler := newHandler(config.Config{Secret: "hook"}, expander)

	for _, body := range []string{`{"text":""}`, `{}`, `{not json`} {
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)

		if res.Code != http.StatusOK {
			t.Fatalf("body %q: expected 200, got %d", body, res.Code)
		}
		if res.Body.Len() != 0 {
			t.Fatalf("body %q: expected empty response, got %q", body, res.Body.String())
		}
	}
	if expander.calls != 0 {
		t.Fatalf("expander must not run without text, got %d calls", expander.calls)
	}
}

func TestNoTriggersYieldsEmptyBody(t *testing.T) {
	expander := &fakeExpander{reply: ""}
	handler := newHandler(config.Config{Secret: "hook"}, expander)

	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{"text":"just words"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK || res.Body.Len() != 0 {
		t.Fatalf("expected empty 200, got %d %q", res.Code, res.Body.String())
	}
	if expander.calls != 1 {
		t.Fatalf("expected one expand call, got %d", expander.calls)
	}
}

func TestSecretPathIsEnforced(t *testing.T) {
	handler := newHandler(config.Config{Secret: "s3cr3t"}, &fakeExpander{})

	req := httptest.NewRequest(http.MethodPost, "/wrong", strings.NewReader(`{"text":"AT-1"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on wrong path, got %d", res.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newHandler(config.Config{Secret: "hook"}, &fakeExpander{})
	req := httptest.NewRequest(http.MethodGet, "/hook", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := newHandler(config.Config{Secret: "hook"}, &fakeExpander{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

type panickyExpander struct{}

func (panickyExpander) Expand(ctx context.Context, text, channel, source string) string {
	panic("unexpected state")
}

func TestPanicSurfacesInDevelopment(t *testing.T) {
	handler := newHandler(config.Config{Environment: "development", Secret: "hook"}, panickyExpander{})

	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{"text":"AT-1"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 in development, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "unexpected state") {
		t.Fatalf("expected error detail in body, got %q", res.Body.String())
	}
}

func TestPanicClosesConnectionInProduction(t *testing.T) {
	handler := newHandler(config.Config{Environment: "production", Secret: "hook"}, panickyExpander{})

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler, got %v", rec)
		}
	}()
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{"text":"AT-1"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	t.Fatal("expected the handler to abort")
}
