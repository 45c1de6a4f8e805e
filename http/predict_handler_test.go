package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"userpredict/ml"
)

const testAPIKey = "s3cret"

// ageModel predicts 1 for above-average (scaled) age.
type ageModel struct {
	calls   int
	panics  bool
	failing error
}

func (m *ageModel) Fit(features [][]float64, labels []int) error { return nil }

func (m *ageModel) NumFeatures() int { return ml.DefaultSchema().Width() }

func (m *ageModel) Predict(features []float64) (int, float64, error) {
	m.calls++
	if m.panics {
		panic("model exploded")
	}
	if m.failing != nil {
		return 0, 0, m.failing
	}
	if features[0] > 0 {
		return 1, 1, nil
	}
	return 0, 1, nil
}

func testArtifact(t *testing.T, model ml.Classifier) *ml.ModelArtifact {
	t.Helper()
	rows := []map[string]string{
		{"age": "25", "gender": "M", "income": "40000", "days_on_platform": "5", "city": "NYC"},
		{"age": "30", "gender": "F", "income": "50000", "days_on_platform": "10", "city": "LA"},
		{"age": "35", "gender": "M", "income": "60000", "days_on_platform": "15", "city": "NYC"},
		{"age": "40", "gender": "F", "income": "", "days_on_platform": "20", "city": "LA"},
		{"age": "45", "gender": "M", "income": "80000", "days_on_platform": "25", "city": "NYC"},
		{"age": "50", "gender": "F", "income": "90000", "days_on_platform": "30", "city": "LA"},
	}
	records := make([]ml.Record, len(rows))
	for i, row := range rows {
		records[i] = ml.RecordFromStrings(row)
	}
	ds, err := ml.NewDataset(records, []int{0, 0, 0, 1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	p := ml.NewPreprocessor(ml.DefaultSchema())
	if _, err := p.Preprocess(ds, true); err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	artifact, err := ml.NewModelArtifact(model, p, ml.Evaluation{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return artifact
}

func testServer(t *testing.T, config ServerConfig, model ml.Classifier) http.Handler {
	t.Helper()
	server, err := NewServer(config, testArtifact(t, model), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return server.Handler()
}

func postPredict(handler http.Handler, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHandlePredict(t *testing.T) {
	config := DefaultServerConfig()
	config.APIKey = testAPIKey
	handler := testServer(t, config, &ageModel{})

	tests := []struct {
		name       string
		key        string
		body       string
		wantStatus int
		wantLabel  int
		wantError  string
	}{
		{
			name:       "valid request",
			key:        testAPIKey,
			body:       `{"age": 55, "gender": "F", "income": 50000, "days_on_platform": 10, "city": "LA"}`,
			wantStatus: http.StatusOK,
			wantLabel:  1,
		},
		{
			name:       "string values are coerced",
			key:        testAPIKey,
			body:       `{"age": "26", "gender": "M", "income": "45000", "days_on_platform": "3", "city": "NYC"}`,
			wantStatus: http.StatusOK,
			wantLabel:  0,
		},
		{
			name:       "missing values are imputed",
			key:        testAPIKey,
			body:       `{"age": 60, "gender": null, "income": "", "days_on_platform": null, "city": "NYC"}`,
			wantStatus: http.StatusOK,
			wantLabel:  1,
		},
		{
			name:       "missing city",
			key:        testAPIKey,
			body:       `{"age": 34, "gender": "F", "income": 50000, "days_on_platform": 10}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "missing required fields: city",
		},
		{
			name:       "unknown field",
			key:        testAPIKey,
			body:       `{"age": 34, "gender": "F", "income": 50000, "days_on_platform": 10, "city": "LA", "zip": "10001"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "unknown fields: zip",
		},
		{
			name:       "malformed json",
			key:        testAPIKey,
			body:       `{"age": `,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "trailing data",
			key:        testAPIKey,
			body:       `{"age": 34, "gender": "F", "income": 50000, "days_on_platform": 10, "city": "LA"} garbage`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "nested value",
			key:        testAPIKey,
			body:       `{"age": [1], "gender": "F", "income": 50000, "days_on_platform": 10, "city": "LA"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unseen category",
			key:        testAPIKey,
			body:       `{"age": 34, "gender": "F", "income": 50000, "days_on_platform": 10, "city": "Tokyo"}`,
			wantStatus: http.StatusInternalServerError,
			wantError:  "Tokyo",
		},
		{
			name:       "wrong key",
			key:        "guess",
			body:       `{"age": 34, "gender": "F", "income": 50000, "days_on_platform": 10, "city": "LA"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid api key",
		},
		{
			name:       "missing key",
			body:       `{"age": 34, "gender": "F", "income": 50000, "days_on_platform": 10, "city": "LA"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid api key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postPredict(handler, tt.key, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("unexpected content type %q", ct)
			}

			var payload map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if tt.wantStatus == http.StatusOK {
				label, ok := payload["prediction"].(float64)
				if !ok || int(label) != tt.wantLabel {
					t.Fatalf("unexpected prediction: %v", payload)
				}
				return
			}
			msg, _ := payload["error"].(string)
			if msg == "" || !strings.Contains(msg, tt.wantError) {
				t.Fatalf("expected error containing %q, got %v", tt.wantError, payload)
			}
		})
	}
}

func TestHandlePredictOpenWithoutKey(t *testing.T) {
	handler := testServer(t, DefaultServerConfig(), &ageModel{})
	w := postPredict(handler, "", `{"age": 34, "gender": "F", "income": 50000, "days_on_platform": 10, "city": "LA"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandlePredictCache(t *testing.T) {
	model := &ageModel{}
	handler := testServer(t, DefaultServerConfig(), model)
	body := `{"age": 34, "gender": "F", "income": 50000, "days_on_platform": 10, "city": "LA"}`

	postPredict(handler, "", body)
	calls := model.calls
	w := postPredict(handler, "", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if model.calls != calls {
		t.Fatalf("expected cached prediction, model called %d more times", model.calls-calls)
	}

	postPredict(handler, "", `{"age": 34, "gender": "F", "income": null, "days_on_platform": 10, "city": "LA"}`)
	if model.calls != calls+1 {
		t.Fatalf("expected a fresh prediction for a different record")
	}
}

func TestHandlePredictCacheDisabled(t *testing.T) {
	model := &ageModel{}
	config := DefaultServerConfig()
	config.CacheSize = 0
	handler := testServer(t, config, model)
	body := `{"age": 34, "gender": "F", "income": 50000, "days_on_platform": 10, "city": "LA"}`

	postPredict(handler, "", body)
	calls := model.calls
	postPredict(handler, "", body)
	if model.calls != calls+1 {
		t.Fatalf("expected every request to reach the model")
	}
}

func TestHandlePredictModelFailure(t *testing.T) {
	model := &ageModel{}
	handler := testServer(t, DefaultServerConfig(), model)
	model.failing = errTestModel

	w := postPredict(handler, "", `{"age": 34, "gender": "F", "income": 50000, "days_on_platform": 10, "city": "LA"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestHandlePredictRecoversPanic(t *testing.T) {
	model := &ageModel{}
	handler := testServer(t, DefaultServerConfig(), model)
	model.panics = true

	w := postPredict(handler, "", `{"age": 34, "gender": "F", "income": 50000, "days_on_platform": 10, "city": "LA"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "internal server error") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestHandlePredictBodyTooLarge(t *testing.T) {
	config := DefaultServerConfig()
	config.MaxBodyBytes = 16
	handler := testServer(t, config, &ageModel{})

	w := postPredict(handler, "", `{"age": 34, "gender": "F", "income": 50000, "days_on_platform": 10, "city": "LA"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func TestPredictMethodNotAllowed(t *testing.T) {
	handler := testServer(t, DefaultServerConfig(), &ageModel{})
	req := httptest.NewRequest(http.MethodGet, "/predict", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
