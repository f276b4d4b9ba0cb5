package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Credentials the harness wires into the provider config. The stubs check
// every authenticated request against them so a credential-plumbing
// regression fails loudly here.
const (
	POPTestKey     = "pop-e2e-key"
	LLMTestKey     = "llm-e2e-key"
	KeywordTestKey = "kw-e2e-key"
)

// Canned task ids served by the POP stub. The adapter treats them as opaque.
const (
	popTermsTaskID  = "task-terms-1"
	popReportTaskID = "task-report-1"
	popReportID     = "report-1"
)

// POPStub speaks the optimization provider's task protocol: POSTs that
// return task ids, GET /task/{id} polls, and the inline recommendations
// call. Responses are canned; the stub only varies by the failure toggles.
type POPStub struct {
	srv *httptest.Server

	mu                  sync.Mutex
	getTermsCalls       int
	createReportCalls   int
	recommendationCalls int
	pollCalls           int
	badAuth             int
	failRecommendations bool
	failReportTask      bool
}

// NewPOPStub starts the stub server and registers its shutdown with t.
func NewPOPStub(t *testing.T) *POPStub {
	t.Helper()
	s := &POPStub{}

	mux := http.NewServeMux()
	mux.HandleFunc("/get-terms", s.handleGetTerms)
	mux.HandleFunc("/create-report", s.handleCreateReport)
	mux.HandleFunc("/get-custom-recommendations", s.handleRecommendations)
	mux.HandleFunc("/task/", s.handleTaskPoll)

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the stub's base URL for the provider config.
func (s *POPStub) URL() string { return s.srv.URL }

// FailRecommendations makes step 3 return 500. The pipeline must degrade to
// a brief without custom recommendations rather than fail the page.
func (s *POPStub) FailRecommendations() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRecommendations = true
}

// FailReportTask makes the report task poll settle as a failure, which fails
// the page.
func (s *POPStub) FailReportTask() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReportTask = true
}

// GetTermsCalls reports how many step-1 submissions arrived.
func (s *POPStub) GetTermsCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getTermsCalls
}

// ReportCalls reports how many step-2 submissions arrived.
func (s *POPStub) ReportCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createReportCalls
}

// RecommendationCalls reports how many step-3 calls arrived.
func (s *POPStub) RecommendationCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recommendationCalls
}

// BadAuthCount reports how many authenticated requests arrived with a
// missing or wrong apiKey field. Should stay zero.
func (s *POPStub) BadAuthCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.badAuth
}

func (s *POPStub) handleGetTerms(w http.ResponseWriter, r *http.Request) {
	s.decodeAndCheckAuth(r)
	s.mu.Lock()
	s.getTermsCalls++
	s.mu.Unlock()
	writeJSON(w, map[string]any{"task_id": popTermsTaskID})
}

func (s *POPStub) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	s.decodeAndCheckAuth(r)
	s.mu.Lock()
	s.createReportCalls++
	s.mu.Unlock()
	writeJSON(w, map[string]any{"task_id": popReportTaskID, "reportId": popReportID})
}

func (s *POPStub) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	s.decodeAndCheckAuth(r)
	s.mu.Lock()
	s.recommendationCalls++
	fail := s.failRecommendations
	s.mu.Unlock()
	if fail {
		http.Error(w, `{"error":"recommendations unavailable"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"recommendations": map[string]any{
			"keywordPlacements": []any{
				map[string]any{"signal": "page_title", "target": 1, "comment": "Lead with the exact keyword"},
				map[string]any{"signal": "top_description", "target": 2},
			},
			"lsiPlacements": []any{
				map[string]any{"signal": "h2", "target": 2, "phrase": "grippy outsole"},
			},
			"pageStructureRecommendations": map[string]any{
				"h2": map[string]any{"target": 4, "min": 2, "max": 6},
			},
		},
	})
}

func (s *POPStub) handleTaskPoll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.pollCalls++
	failReport := s.failReportTask
	s.mu.Unlock()

	taskID := strings.TrimPrefix(r.URL.Path, "/task/")
	switch taskID {
	case popTermsTaskID:
		writeJSON(w, map[string]any{
			"status":    "success",
			"prepareId": "prep-7",
			"variations": []any{
				"trail running shoes",
				"trail runners",
			},
			"lsaPhrases": []any{
				map[string]any{"phrase": "grippy outsole", "weight": 1.4, "averageCount": 2, "targetCount": 3},
				map[string]any{"phrase": "rock plate", "weight": 1.1, "averageCount": 1, "targetCount": 2},
			},
		})
	case popReportTaskID:
		if failReport {
			writeJSON(w, map[string]any{"status": "failure", "message": "report build crashed"})
			return
		}
		writeJSON(w, map[string]any{
			"status": "success",
			"report": map[string]any{
				"wordCount":        map[string]any{"target": 800, "competitorsMin": 500, "competitorsMax": 1100},
				"tagCounts":        map[string]any{"h3": 3},
				"relatedQuestions": []any{"Do trail shoes work on the road?"},
				"competitors": []any{
					map[string]any{"url": "https://rival.example/a", "title": "Rival A", "wordCount": 650, "pageScore": 78},
					map[string]any{"url": "https://rival.example/b", "title": "Rival B", "wordCount": 950, "pageScore": 84},
				},
			},
		})
	default:
		http.NotFound(w, r)
	}
}

// decodeAndCheckAuth reads the JSON body and verifies the injected apiKey
// field.
func (s *POPStub) decodeAndCheckAuth(r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	if key, _ := body["apiKey"].(string); key != POPTestKey {
		s.mu.Lock()
		s.badAuth++
		s.mu.Unlock()
	}
}

// defaultDraftText is the writer completion the LLM stub serves when no
// scripted response is queued. Valid draft JSON, clean of tier-1 words,
// balanced tags, so the default path clears QA.
const defaultDraftText = `{
  "page_title": "Trail Running Shoes Built for Grip",
  "meta_description": "Shop trail running shoes with sticky rubber outsoles and deep lugs for mud, rock, and long climbs.",
  "top_description": "<p>Our trail range keeps you planted on rocky descents and slick roots.</p><h2>Grippy outsole options</h2><p>Every pair combines a sticky rubber compound with deep lugs, and most add a rock plate for sharp terrain.</p>",
  "bottom_description": "<p>From doorstep miles to summit pushes, these shoes hold their line. Pick your drop, pick your cushion, and get out there.</p>"
}`

// LLMCall is one recorded completion request.
type LLMCall struct {
	System        string
	Prompt        string
	MaxTokens     int
	Authorization string
}

// LLMStub serves POST /v1/complete. Responses come from a scripted queue,
// falling back to defaultDraftText, so a test can feed taxonomy JSON or a
// deliberately bad draft to specific calls. Block/Release gate the handler
// for concurrency tests.
type LLMStub struct {
	srv *httptest.Server

	mu      sync.Mutex
	scripts []string
	calls   []LLMCall
	badAuth int

	gate        chan struct{}
	releaseOnce sync.Once
}

// NewLLMStub starts the stub server and registers its shutdown with t.
func NewLLMStub(t *testing.T) *LLMStub {
	t.Helper()
	s := &LLMStub{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/complete", s.handleComplete)
	s.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		s.Release()
		s.srv.Close()
	})
	return s
}

// URL is the stub's base URL for the provider config.
func (s *LLMStub) URL() string { return s.srv.URL }

// Script queues completion texts served in call order before the default
// draft kicks in.
func (s *LLMStub) Script(texts ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, texts...)
}

// Block makes every completion hang until Release. Must be called before
// the requests arrive.
func (s *LLMStub) Block() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	s.releaseOnce = sync.Once{}
}

// Release unblocks all pending and future completions. Safe to call more
// than once.
func (s *LLMStub) Release() {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate == nil {
		return
	}
	s.releaseOnce.Do(func() { close(gate) })
}

// Calls returns a snapshot of the recorded completion requests.
func (s *LLMStub) Calls() []LLMCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LLMCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount reports how many completions arrived.
func (s *LLMStub) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// BadAuthCount reports how many requests arrived without the expected
// bearer token. Should stay zero.
func (s *LLMStub) BadAuthCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.badAuth
}

func (s *LLMStub) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	var req struct {
		Prompt    string `json:"prompt"`
		System    string `json:"system"`
		MaxTokens int    `json:"max_tokens"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	if r.Header.Get("Authorization") != "Bearer "+LLMTestKey {
		s.badAuth++
	}
	s.calls = append(s.calls, LLMCall{
		System:        req.System,
		Prompt:        req.Prompt,
		MaxTokens:     req.MaxTokens,
		Authorization: r.Header.Get("Authorization"),
	})
	text := defaultDraftText
	if len(s.scripts) > 0 {
		text = s.scripts[0]
		s.scripts = s.scripts[1:]
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"text": text,
		"usage": map[string]any{
			"input_tokens":  120,
			"output_tokens": 340,
		},
	})
}

// KeywordStub serves the volume provider's form-encoded lookup. Volumes come
// from a map set by the test; requested keywords without an entry come back
// with volume zero, which is what the real provider does for long-tail terms
// it has never seen.
type KeywordStub struct {
	srv *httptest.Server

	mu       sync.Mutex
	volumes  map[string]int
	requests [][]string
	badAuth  int
}

// NewKeywordStub starts the stub server and registers its shutdown with t.
func NewKeywordStub(t *testing.T) *KeywordStub {
	t.Helper()
	s := &KeywordStub{volumes: make(map[string]int)}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/get_keyword_data", s.handleGetKeywordData)
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the stub's base URL for the provider config.
func (s *KeywordStub) URL() string { return s.srv.URL }

// SetVolume registers the volume served for a keyword.
func (s *KeywordStub) SetVolume(keyword string, volume int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes[keyword] = volume
}

// Requests returns the kw[] list of every lookup that arrived.
func (s *KeywordStub) Requests() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.requests))
	for i, req := range s.requests {
		out[i] = append([]string(nil), req...)
	}
	return out
}

// BadAuthCount reports how many requests arrived without the expected
// bearer token. Should stay zero.
func (s *KeywordStub) BadAuthCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.badAuth
}

func (s *KeywordStub) handleGetKeywordData(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	requested := r.PostForm["kw[]"]

	s.mu.Lock()
	if r.Header.Get("Authorization") != "Bearer "+KeywordTestKey {
		s.badAuth++
	}
	s.requests = append(s.requests, append([]string(nil), requested...))
	data := make([]any, 0, len(requested))
	for _, kw := range requested {
		data = append(data, map[string]any{
			"keyword":     kw,
			"vol":         s.volumes[kw],
			"cpc":         map[string]any{"currency": "$", "value": "1.25"},
			"competition": 0.4,
		})
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{"data": data, "credits": 4200})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
