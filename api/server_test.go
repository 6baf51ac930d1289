package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kosquant/krxagent/internal/config"
)

// ── Test helpers ──

// fakeAgent records the arguments of the last Route call and returns a
// scripted answer.
type fakeAgent struct {
	mu       sync.Mutex
	answer   string
	question string
	convID   string
	bearer   string
	calls    int
}

func (f *fakeAgent) Route(_ context.Context, question, convID, bearer string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.question = question
	f.convID = convID
	f.bearer = bearer
	return f.answer
}

func testServer(agent Agent) *Server {
	cfg := &config.Config{}
	cfg.API.CORSOrigins = []string{"*"}
	return NewServer(cfg, agent, "test")
}

func doAgent(t *testing.T, srv *Server, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeAgent(t *testing.T, rec *httptest.ResponseRecorder) AgentResponse {
	t.Helper()
	var resp AgentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func authHeader() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer nv-test-key")
	return h
}

// ── /health ──

func TestHealth(t *testing.T) {
	srv := testServer(&fakeAgent{})

	rec := doAgent(t, srv, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status: got %q, want %q", resp.Status, "ok")
	}
	if resp.Version != "test" {
		t.Errorf("version: got %q, want %q", resp.Version, "test")
	}
	if resp.TimeKST == "" {
		t.Error("time_kst should not be empty")
	}
}

// ── /agent: edge validation ──

func TestAgentEmptyQuestion(t *testing.T) {
	agent := &fakeAgent{answer: "should not be called"}
	srv := testServer(agent)

	for _, target := range []string{"/agent", "/agent?question=", "/agent?question=%20%20"} {
		rec := doAgent(t, srv, target, authHeader())
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status got %d, want 400", target, rec.Code)
		}
		resp := decodeAgent(t, rec)
		if resp.Answer != emptyQuestionMsg {
			t.Errorf("%s: answer got %q, want %q", target, resp.Answer, emptyQuestionMsg)
		}
	}
	if agent.calls != 0 {
		t.Errorf("router should not be reached on empty question, got %d calls", agent.calls)
	}
}

func TestAgentMissingBearer(t *testing.T) {
	agent := &fakeAgent{answer: "should not be called"}
	srv := testServer(agent)

	rec := doAgent(t, srv, "/agent?question=q", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
	if agent.calls != 0 {
		t.Error("router should not be reached without a bearer token")
	}

	// An Authorization header with the wrong scheme is still unauthorized.
	h := http.Header{}
	h.Set("Authorization", "Basic dXNlcjpwdw==")
	rec = doAgent(t, srv, "/agent?question=q", h)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("basic auth: status got %d, want 401", rec.Code)
	}
}

// ── /agent: routing ──

func TestAgentPassesQuestionAndBearer(t *testing.T) {
	agent := &fakeAgent{answer: "2024-12-02 삼성전자 종가는 53,500원입니다."}
	srv := testServer(agent)

	rec := doAgent(t, srv, "/agent?question=삼성전자+종가&session_id=abc-123", authHeader())
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	resp := decodeAgent(t, rec)
	if resp.Answer != agent.answer {
		t.Errorf("answer: got %q, want %q", resp.Answer, agent.answer)
	}
	if resp.SessionID != "abc-123" {
		t.Errorf("session_id: got %q, want %q", resp.SessionID, "abc-123")
	}
	if agent.question != "삼성전자 종가" {
		t.Errorf("routed question: got %q", agent.question)
	}
	if agent.convID != "abc-123" {
		t.Errorf("routed convID: got %q", agent.convID)
	}
	if agent.bearer != "nv-test-key" {
		t.Errorf("routed bearer: got %q", agent.bearer)
	}
}

func TestAgentSessionIDFromHeader(t *testing.T) {
	agent := &fakeAgent{answer: "ok"}
	srv := testServer(agent)

	h := authHeader()
	h.Set(sessionHeader, "header-session-7")
	rec := doAgent(t, srv, "/agent?question=q", h)

	resp := decodeAgent(t, rec)
	if resp.SessionID != "header-session-7" {
		t.Errorf("session_id: got %q, want %q", resp.SessionID, "header-session-7")
	}
	if agent.convID != "header-session-7" {
		t.Errorf("routed convID: got %q", agent.convID)
	}
}

func TestAgentQueryParamWinsOverHeader(t *testing.T) {
	agent := &fakeAgent{answer: "ok"}
	srv := testServer(agent)

	h := authHeader()
	h.Set(sessionHeader, "from-header")
	rec := doAgent(t, srv, "/agent?question=q&session_id=from-query", h)

	resp := decodeAgent(t, rec)
	if resp.SessionID != "from-query" {
		t.Errorf("session_id: got %q, want %q", resp.SessionID, "from-query")
	}
}

func TestAgentMintsSessionID(t *testing.T) {
	agent := &fakeAgent{answer: "ok"}
	srv := testServer(agent)

	rec := doAgent(t, srv, "/agent?question=q", authHeader())

	resp := decodeAgent(t, rec)
	if resp.SessionID == "" {
		t.Fatal("session_id should be minted when the request carries none")
	}
	// UUIDv4 text form: 8-4-4-4-12.
	if parts := strings.Split(resp.SessionID, "-"); len(parts) != 5 {
		t.Errorf("minted session_id %q is not a UUID", resp.SessionID)
	}
	if agent.convID != resp.SessionID {
		t.Errorf("router saw convID %q, response carries %q", agent.convID, resp.SessionID)
	}

	// A second call without a session id mints a different one.
	rec2 := doAgent(t, srv, "/agent?question=q", authHeader())
	if resp2 := decodeAgent(t, rec2); resp2.SessionID == resp.SessionID {
		t.Error("each sessionless request should mint a fresh id")
	}
}

func TestAgentFollowUpPromptIs200(t *testing.T) {
	agent := &fakeAgent{answer: "어떤 날짜의 삼성전자 종가를 알려 드릴까요?"}
	srv := testServer(agent)

	rec := doAgent(t, srv, "/agent?question=삼성전자+종가&session_id=s1", authHeader())
	if rec.Code != http.StatusOK {
		t.Errorf("follow-up prompt: status got %d, want 200", rec.Code)
	}
	resp := decodeAgent(t, rec)
	if !strings.Contains(resp.Answer, "알려 드릴까요") {
		t.Errorf("prompt not passed through: %q", resp.Answer)
	}
}

// ── bearerToken ──

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer nv-abc", "nv-abc"},
		{"bearer nv-abc", "nv-abc"},
		{"Bearer   padded  ", "padded"},
		{"Bearer ", ""},
		{"Basic xyz", ""},
		{"", ""},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/agent", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(req); got != tc.want {
			t.Errorf("bearerToken(%q): got %q, want %q", tc.header, got, tc.want)
		}
	}
}
