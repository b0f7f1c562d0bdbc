package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

// newLocalServer serves handler on an IPv4 loopback listener and skips the
// test where sockets are not permitted.
func newLocalServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("local listener unavailable: %v", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := httptest.NewUnstartedServer(handler)
	_ = srv.Listener.Close()
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

type step struct {
	status int
	header http.Header
}

// completionEndpoint plays script against successive /chat/completions
// calls, answering 200 with plan once the script runs out, and keeps every
// decoded request body.
type completionEndpoint struct {
	script []step
	plan   string

	mu       sync.Mutex
	requests []map[string]any
}

func (e *completionEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
		http.NotFound(w, r)
		return
	}
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	e.mu.Lock()
	n := len(e.requests)
	e.requests = append(e.requests, body)
	e.mu.Unlock()

	cur := step{status: http.StatusOK}
	if n < len(e.script) {
		cur = e.script[n]
	}
	for k, vals := range cur.header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(cur.status)
	if cur.status == http.StatusOK {
		_ = json.NewEncoder(w).Encode(GenerateResponse{Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: e.plan}}}})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": http.StatusText(cur.status)}})
}

func (e *completionEndpoint) calls() []map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]map[string]any(nil), e.requests...)
}

const revenuePlan = `{"query":{"group_by":["local"],"metric":"revenue"},"answer":"Revenue by location: {result}","confidence":0.8}`

func planRequest() GenerateRequest {
	return GenerateRequest{
		Model: "test-model",
		Messages: []Message{
			{Role: RoleSystem, Content: "Translate the question into a query plan."},
			{Role: RoleUser, Content: "revenue by location?"},
		},
		MaxTokens: 256,
		JSONMode:  true,
	}
}

func assertJSONMode(t *testing.T, body map[string]any) {
	t.Helper()
	rf, ok := body["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_object" {
		t.Fatalf("attempt without json_object response_format: %v", body["response_format"])
	}
}

func TestGenerateRetriesRateLimitedPlan(t *testing.T) {
	ep := &completionEndpoint{
		script: []step{{status: http.StatusTooManyRequests, header: http.Header{"Retry-After": {"0"}}}},
		plan:   revenuePlan,
	}
	srv := newLocalServer(t, ep)

	c := NewClientWithBaseURL("test", 2*time.Second, 3, 10*time.Millisecond, 100*time.Millisecond, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Generate(ctx, planRequest())
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	var plan struct {
		Query struct {
			Metric string `json:"metric"`
		} `json:"query"`
	}
	if err := json.Unmarshal([]byte(resp.Content()), &plan); err != nil || plan.Query.Metric != "revenue" {
		t.Fatalf("plan did not survive the retry: %q (%v)", resp.Content(), err)
	}
	calls := ep.calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(calls))
	}
	for _, body := range calls {
		assertJSONMode(t, body)
		if msgs, _ := body["messages"].([]any); len(msgs) != 2 {
			t.Fatalf("retry changed the conversation: %v", body["messages"])
		}
	}
}

func TestGenerateWaitsForRetryAfter(t *testing.T) {
	ep := &completionEndpoint{
		script: []step{{status: http.StatusTooManyRequests, header: http.Header{"Retry-After": {"1"}}}},
		plan:   revenuePlan,
	}
	srv := newLocalServer(t, ep)

	c := NewClientWithBaseURL("test", 5*time.Second, 3, 0, 0, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := c.Generate(ctx, planRequest()); err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("Retry-After of 1s not honored, retried after %v", elapsed)
	}
	assertJSONMode(t, ep.calls()[1])
}

func TestGenerateRejectedPlanCarriesRequestID(t *testing.T) {
	ep := &completionEndpoint{
		script: []step{{status: http.StatusBadRequest, header: http.Header{"X-Request-Id": {"req_plan_42"}}}},
	}
	srv := newLocalServer(t, ep)

	c := NewClientWithBaseURL("test", 2*time.Second, 3, 10*time.Millisecond, 50*time.Millisecond, srv.URL)
	_, err := c.Generate(context.Background(), planRequest())
	if err == nil || !strings.Contains(err.Error(), "req_plan_42") {
		t.Fatalf("expected request id in error, got: %v", err)
	}
	if n := len(ep.calls()); n != 1 {
		t.Fatalf("a 400 must not be retried, got %d attempts", n)
	}
}

func TestGenerateSendsJSONModeAndHeaders(t *testing.T) {
	var got map[string]any
	var referer, title string
	srv := newLocalServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: " {\"a\":1} "}}}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 1, 0, 0, srv.URL)
	resp, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "q"}}, JSONMode: true})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Content() != `{"a":1}` {
		t.Fatalf("unexpected content: %q", resp.Content())
	}
	rf, ok := got["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_object" {
		t.Fatalf("expected json_object response_format, got %v", got["response_format"])
	}
	if _, ok := got["JSONMode"]; ok {
		t.Fatalf("JSONMode leaked into the wire payload")
	}
	if title != "Salesloom" || !strings.Contains(referer, "salesloom") {
		t.Fatalf("unexpected attribution headers: %q %q", referer, title)
	}
}

func TestGenerateMissingKey(t *testing.T) {
	c := NewClient("", time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestGenerateClassifiesAuthError(t *testing.T) {
	srv := newLocalServer(t, &completionEndpoint{script: []step{{status: http.StatusUnauthorized}}})
	c := NewClientWithBaseURL("bad", 2*time.Second, 3, 0, 0, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "q"}}})
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %T %v", err, err)
	}
}

func TestGenerateGivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := newLocalServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "upstream"}})
	}))
	defer srv.Close()
	c := NewClientWithBaseURL("k", 2*time.Second, 3, time.Millisecond, 5*time.Millisecond, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "q"}}})
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %T %v", err, err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestRegistryProviders(t *testing.T) {
	got := strings.Join(Providers(), ",")
	if got != "gemini,ollama,openrouter" {
		t.Fatalf("unexpected providers: %s", got)
	}
	rt, ok := GetRuntime(ProviderGemini, RuntimeConfig{APIKey: "k"})
	if !ok {
		t.Fatalf("gemini runtime not registered")
	}
	if _, isGemini := rt.(*GeminiClient); !isGemini {
		t.Fatalf("unexpected runtime type %T", rt)
	}
	if _, ok := GetRuntime("nope", RuntimeConfig{}); ok {
		t.Fatalf("unknown provider should not resolve")
	}
}
