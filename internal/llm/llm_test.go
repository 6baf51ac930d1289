package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	retryBaseDelay = time.Millisecond
	m.Run()
}

func clovaOK(content string) string {
	return fmt.Sprintf(`{"status":{"code":"20000","message":"OK"},"result":{"message":{"role":"assistant","content":%q},"stopReason":"stop_before","inputLength":12,"outputLength":4}}`, content)
}

func TestClovaChat(t *testing.T) {
	var gotAuth, gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-NCP-CLOVASTUDIO-REQUEST-ID")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, clovaOK("안녕하세요"))
	}))
	defer srv.Close()

	p := NewClovaProvider("key-1", WithClovaBaseURL(srv.URL))
	resp, err := p.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "안녕하세요" {
		t.Errorf("content = %q", resp.Content)
	}
	if gotAuth != "Bearer key-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReqID == "" {
		t.Error("request id header missing")
	}
	if resp.Usage.TotalTokens != 16 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestClovaBearerPassThrough(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, clovaOK("ok"))
	}))
	defer srv.Close()

	p := NewClovaProvider("configured", WithClovaBaseURL(srv.URL))
	_, err := p.Chat(context.Background(), []Message{UserMessage("hi")}, &ChatOptions{Bearer: "per-request"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if gotAuth != "Bearer per-request" {
		t.Errorf("per-request bearer should win, got %q", gotAuth)
	}

	// No configured key and no bearer: fail before the wire.
	empty := NewClovaProvider("", WithClovaBaseURL(srv.URL))
	if _, err := empty.Chat(context.Background(), []Message{UserMessage("hi")}, nil); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestClovaErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrNoAPIKey},
		{http.StatusTooManyRequests, ErrRateLimit},
		{529, ErrRateLimit},
		{http.StatusNotFound, ErrInvalidModel},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			fmt.Fprint(w, `{"status":{"code":"42901","message":"denied"}}`)
		}))
		p := NewClovaProvider("k", WithClovaBaseURL(srv.URL))
		_, err := p.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
		srv.Close()
	}
}

func TestClovaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":{"code":"20000","message":"OK"},"result":{"embedding":[0.1,0.2,0.3]}}`)
	}))
	defer srv.Close()

	p := NewClovaProvider("k", WithClovaBaseURL(srv.URL))
	vec, err := p.Embed(context.Background(), "삼성전자")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("vec = %v", vec)
	}
}

// rateLimitedProvider fails with ErrRateLimit until the given attempt.
type rateLimitedProvider struct {
	calls     atomic.Int32
	succeedAt int32
	hardErr   error
}

func (f *rateLimitedProvider) Name() string { return "fake" }

func (f *rateLimitedProvider) Ping(context.Context) error { return nil }

func (f *rateLimitedProvider) Chat(_ context.Context, _ []Message, _ *ChatOptions) (*Response, error) {
	n := f.calls.Add(1)
	if f.hardErr != nil {
		return nil, f.hardErr
	}
	if n < f.succeedAt {
		return nil, ErrRateLimit
	}
	return &Response{Content: "ok"}, nil
}

func TestChatWithRetryOnRateLimit(t *testing.T) {
	p := &rateLimitedProvider{succeedAt: 3}
	resp, err := ChatWithRetry(context.Background(), p, []Message{UserMessage("q")}, nil, 3)
	if err != nil {
		t.Fatalf("ChatWithRetry: %v", err)
	}
	if resp.Content != "ok" || p.calls.Load() != 3 {
		t.Errorf("calls = %d", p.calls.Load())
	}
}

func TestChatWithRetryExhausted(t *testing.T) {
	p := &rateLimitedProvider{succeedAt: 10}
	_, err := ChatWithRetry(context.Background(), p, nil, nil, 3)
	if !errors.Is(err, ErrRateLimit) {
		t.Fatalf("expected ErrRateLimit, got %v", err)
	}
	if p.calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", p.calls.Load())
	}
}

func TestChatWithRetryNoRetryOnHardError(t *testing.T) {
	p := &rateLimitedProvider{hardErr: ErrNoAPIKey}
	_, err := ChatWithRetry(context.Background(), p, nil, nil, 3)
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
	if p.calls.Load() != 1 {
		t.Errorf("hard errors must not be retried, calls = %d", p.calls.Load())
	}
}
