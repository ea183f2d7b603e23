package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekyc/internal/decision"
	"ekyc/internal/kyc/models"
	"ekyc/internal/platform/config"
)

func stubProviders(t *testing.T) string {
	t.Helper()
	answers := map[string]string{
		"/sanctions": `{"status":"CLEAR","matchCount":0,"matches":[]}`,
		"/document":  `{"status":"PASS","confidence":97,"reasons":[]}`,
		"/biometric": `{"status":"PASS","confidence":94,"similarityScore":93.1}`,
		"/address":   `{"status":"PASS","confidence":70,"reasons":["utility bill older than 90 days"]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := answers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testConfig(baseURL string) config.Config {
	cfg := config.Default()
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.RateLimit.PollInterval = 10 * time.Millisecond
	cfg.Providers.Document.URL = baseURL + "/document"
	cfg.Providers.Biometric.URL = baseURL + "/biometric"
	cfg.Providers.Address.URL = baseURL + "/address"
	cfg.Providers.Sanctions.URL = baseURL + "/sanctions"
	return cfg
}

func TestRunVerify(t *testing.T) {
	cfg := testConfig(stubProviders(t))
	input := `[
	  {"customer": {"customer_id": "c-1", "full_name": "Ada Lovelace", "date_of_birth": "1815-12-10"},
	   "request": {"request_id": "r-1", "customer_id": "c-1", "verification_types": ["SANCTIONS", "ID_DOCUMENT", "FACE_MATCH"]}},
	  {"customer": {"customer_id": "c-2", "full_name": "Alan Turing", "date_of_birth": "1912-06-23"},
	   "request": {"request_id": "r-2", "customer_id": "c-2", "verification_types": ["ADDRESS"]}},
	  {"customer": {"customer_id": "c-3"},
	   "request": {"customer_id": "c-3", "verification_types": []}}
	]`

	var stdout, stderr bytes.Buffer
	err := runVerify(context.Background(), cfg, verifyOptions{concurrency: 2},
		strings.NewReader(input), &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, "1 of 3 requests rejected", err.Error())

	var outputs []verifyOutput
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &outputs))
	require.Len(t, outputs, 3)

	assert.Equal(t, "c-1", outputs[0].CustomerID)
	require.NotNil(t, outputs[0].Result)
	assert.Equal(t, models.DecisionApproved, outputs[0].Result.Decision)
	assert.Equal(t, "r-1", outputs[0].Result.CorrelationID)

	require.NotNil(t, outputs[1].Result)
	assert.Equal(t, models.DecisionManualReview, outputs[1].Result.Decision)
	assert.Equal(t, []string{"utility bill older than 90 days"}, outputs[1].Result.Results[0].Reasons)

	assert.Nil(t, outputs[2].Result)
	assert.Contains(t, outputs[2].Error, "invalid verification request")

	assert.Contains(t, stderr.String(), "audit", "decisions are audited to the log without kafka")
}

func TestRunVerify_BadInput(t *testing.T) {
	cfg := testConfig("http://unused.test")
	var stdout, stderr bytes.Buffer

	err := runVerify(context.Background(), cfg, verifyOptions{concurrency: 1},
		strings.NewReader(""), &stdout, &stderr)
	require.EqualError(t, err, "input is empty")

	err = runVerify(context.Background(), cfg, verifyOptions{concurrency: 1},
		strings.NewReader(`[{"customer": {}, "extra": true}]`), &stdout, &stderr)
	require.ErrorContains(t, err, "decode input")
}

func TestRunDecide(t *testing.T) {
	t.Run("from stdin", func(t *testing.T) {
		input := `[
		  {"verification_type": "ID_DOCUMENT", "status": "FAIL", "confidence": 0, "reasons": ["Document EXPIRED on 2021-04-30"]},
		  {"verification_type": "ADDRESS", "status": "PASS", "confidence": 99, "reasons": []}
		]`
		var stdout bytes.Buffer
		require.NoError(t, runDecide(config.Default(), "", strings.NewReader(input), &stdout))

		var outcome decision.Outcome
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &outcome))
		assert.Equal(t, models.DecisionRejected, outcome.Decision)
		assert.Equal(t, decision.ReasonDocumentExpired, outcome.Reason)
	})

	t.Run("from file with custom thresholds", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "results.json")
		require.NoError(t, os.WriteFile(path,
			[]byte(`[{"verification_type": "ADDRESS", "status": "PASS", "confidence": 72, "reasons": []}]`), 0o600))
		cfg := config.Default()
		cfg.Thresholds.AddressConfidence = 70

		var stdout bytes.Buffer
		require.NoError(t, runDecide(cfg, path, nil, &stdout))

		var outcome decision.Outcome
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &outcome))
		assert.Equal(t, models.DecisionApproved, outcome.Decision)
	})

	t.Run("invalid result rejected", func(t *testing.T) {
		input := `[{"verification_type": "ADDRESS", "status": "HIT", "reasons": []}]`
		err := runDecide(config.Default(), "", strings.NewReader(input), &bytes.Buffer{})
		require.ErrorContains(t, err, "result 0")
	})
}

func TestHealthz(t *testing.T) {
	cfg := testConfig("http://unused.test")
	a, err := newApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(a.close)

	router := newObservabilityRouter(a)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","rate_limiter":"memory"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRootCommandWiresSubcommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"verify", "decide"})
}
