package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/normtext/lawdex/internal/domain"
	"github.com/normtext/lawdex/internal/metrics"
	healthuc "github.com/normtext/lawdex/internal/usecase/health"
)

func TestMain(m *testing.M) {
	metrics.RegisterSearchMetrics()
	os.Exit(m.Run())
}

type mockSearcher struct {
	queryID int64
	results []domain.SearchResult
	err     error
}

func (m *mockSearcher) Search(_ context.Context, _ string, _ int) (int64, []domain.SearchResult, error) {
	if m.err != nil {
		return 0, nil, m.err
	}
	return m.queryID, m.results, nil
}

type mockRater struct {
	err     error
	lawID   int64
	queryID int64
	rating  domain.Rating
}

func (m *mockRater) Submit(_ context.Context, lawID, queryID int64, rating domain.Rating) error {
	m.lawID, m.queryID, m.rating = lawID, queryID, rating
	return m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func newTestServer(search Searcher, ratings Rater, health HealthChecker, apiKeys ...string) *httptest.Server {
	if health == nil {
		health = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}
	srv := NewServer(search, ratings, health, apiKeys, zap.NewNop())
	return httptest.NewServer(srv.Router())
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestSearchEndpoint(t *testing.T) {
	search := &mockSearcher{
		queryID: 42,
		results: []domain.SearchResult{
			{ID: 1, BookCode: "StGB", Title: "§ 242 Diebstahl", Text: "Wer ...", Score: 0.9},
		},
	}
	ts := newTestServer(search, &mockRater{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/search?q=Diebstahl&n=5")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[searchResponse](t, resp)
	if body.Query != "Diebstahl" || body.QueryID != 42 {
		t.Errorf("unexpected envelope: %+v", body)
	}
	if len(body.Results) != 1 || body.Results[0].BookCode != "StGB" {
		t.Errorf("unexpected results: %+v", body.Results)
	}
}

func TestSearchEndpoint_EmptyResults(t *testing.T) {
	ts := newTestServer(&mockSearcher{queryID: 1, results: []domain.SearchResult{}}, &mockRater{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/search?q=nichts")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("empty result must be 200, got %d", resp.StatusCode)
	}
	body := decodeBody[searchResponse](t, resp)
	if body.Results == nil || len(body.Results) != 0 {
		t.Errorf("expected empty results array, got %+v", body.Results)
	}
}

func TestSearchEndpoint_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   errorCode
	}{
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest, codeInvalidInput},
		{"embedding provider", domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError},
		{"internal", fmt.Errorf("boom"), http.StatusInternalServerError, codeInternalError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(&mockSearcher{err: fmt.Errorf("search: %w", tc.err)}, &mockRater{}, nil)
			defer ts.Close()

			resp, err := http.Get(ts.URL + "/api/v1/search?q=abc")
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			body := decodeBody[errorResponse](t, resp)
			if body.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tc.wantCode)
			}
		})
	}
}

func TestSearchEndpoint_BadN(t *testing.T) {
	ts := newTestServer(&mockSearcher{}, &mockRater{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/search?q=abc&n=zero")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRatingEndpoint(t *testing.T) {
	rater := &mockRater{}
	ts := newTestServer(&mockSearcher{}, rater, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/rating?id=7&qid=42&r=positive")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if rater.lawID != 7 || rater.queryID != 42 || rater.rating != domain.RatingPositive {
		t.Errorf("unexpected submission: %+v", rater)
	}
	body := decodeBody[map[string]bool](t, resp)
	if !body["success"] {
		t.Errorf("expected success envelope, got %v", body)
	}
}

func TestRatingEndpoint_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   errorCode
	}{
		{"unknown law", domain.ErrNotFound, http.StatusNotFound, codeNotFound},
		{"unknown query", domain.ErrQueryNotFound, http.StatusNotFound, codeQueryNotFound},
		{"rebuild running", domain.ErrRebuildInProgress, http.StatusConflict, codeOperationInProgress},
		{"bad rating", domain.ErrInvalidInput, http.StatusBadRequest, codeInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(&mockSearcher{}, &mockRater{err: tc.err}, nil)
			defer ts.Close()

			resp, err := http.Get(ts.URL + "/api/v1/rating?id=1&qid=1&r=positive")
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			body := decodeBody[errorResponse](t, resp)
			if body.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tc.wantCode)
			}
		})
	}
}

func TestRatingEndpoint_NonNumericIDs(t *testing.T) {
	ts := newTestServer(&mockSearcher{}, &mockRater{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/rating?id=abc&qid=1&r=positive")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthzEndpoint(t *testing.T) {
	health := &mockHealth{report: healthuc.Report{
		Status:    healthuc.Degraded,
		Checks:    map[string]healthuc.CheckResult{"store": healthuc.CheckError},
		IndexSize: 0,
	}}
	ts := newTestServer(&mockSearcher{}, &mockRater{}, health)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("degraded health must be 503, got %d", resp.StatusCode)
	}
}

func TestBearerAuth(t *testing.T) {
	ts := newTestServer(&mockSearcher{queryID: 1}, &mockRater{}, nil, "secret-key")
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/search?q=abc")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/search?q=abc", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid token = %d, want 200", resp.StatusCode)
	}

	// Health stays reachable without a token.
	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz must be exempt from auth, got %d", resp.StatusCode)
	}
}
