package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DaniBoe/fake-checker/app/config"
	"github.com/DaniBoe/fake-checker/app/models"
)

func TestHeuristicFakeHint(t *testing.T) {
	got, err := HeuristicClassifier{}.Classify(context.Background(), "data:image/jpeg;base64,AAAA", map[string]string{"filename": "super-FAKE-labubu.jpg"})
	if err != nil {
		t.Fatalf("Classify error = %v", err)
	}
	if got.Label != models.LabelFake {
		t.Fatalf("Label = %q, want %q", got.Label, models.LabelFake)
	}
	if got.Confidence != 0.92 {
		t.Fatalf("Confidence = %v, want 0.92", got.Confidence)
	}
}

func TestHeuristicKnownBrand(t *testing.T) {
	for _, brand := range []string{"LabCo", "LabuPrime", "VeritasLab"} {
		t.Run(brand, func(t *testing.T) {
			got, err := HeuristicClassifier{}.Classify(context.Background(), "data:image/png;base64,BBBB", map[string]string{"brand": brand})
			if err != nil {
				t.Fatalf("Classify error = %v", err)
			}
			if got.Label != models.LabelLikelyAuthentic {
				t.Fatalf("Label = %q, want %q", got.Label, models.LabelLikelyAuthentic)
			}
			if got.Confidence != 0.78 {
				t.Fatalf("Confidence = %v, want 0.78", got.Confidence)
			}
		})
	}
}

func TestHeuristicDeterministic(t *testing.T) {
	ref := "data:image/webp;base64,CCCCDDDD"
	first, err := HeuristicClassifier{}.Classify(context.Background(), ref, nil)
	if err != nil {
		t.Fatalf("Classify error = %v", err)
	}
	if !models.ValidLabel(first.Label) {
		t.Fatalf("Label = %q not in the valid set", first.Label)
	}
	if first.Confidence < 0 || first.Confidence > 1 {
		t.Fatalf("Confidence = %v out of [0,1]", first.Confidence)
	}

	second, err := HeuristicClassifier{}.Classify(context.Background(), ref, nil)
	if err != nil {
		t.Fatalf("Classify error = %v", err)
	}
	if first != second {
		t.Fatalf("same input produced different verdicts: %+v vs %+v", first, second)
	}
}

func TestCoerceVerdict(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLabel string
		wantConf  float64
		wantErr   bool
	}{
		{
			name:      "strict json",
			input:     `{"label":"Fake","reason":"seam artifacts","confidence":0.9}`,
			wantLabel: models.LabelFake,
			wantConf:  0.9,
		},
		{
			name:      "confidence clamped high",
			input:     `{"label":"Suspicious","reason":"blurry","confidence":3.5}`,
			wantLabel: models.LabelSuspicious,
			wantConf:  1,
		},
		{
			name:      "confidence clamped low",
			input:     `{"label":"Likely Authentic","reason":"clean","confidence":-0.2}`,
			wantLabel: models.LabelLikelyAuthentic,
			wantConf:  0,
		},
		{
			name:      "keyword fake rescue",
			input:     "This figure looks fake to me.",
			wantLabel: models.LabelFake,
			wantConf:  0.8,
		},
		{
			name:      "keyword authentic rescue",
			input:     "Appears authentic overall.",
			wantLabel: models.LabelLikelyAuthentic,
			wantConf:  0.7,
		},
		{
			name:      "unknown prose defaults suspicious",
			input:     "Cannot tell from this angle.",
			wantLabel: models.LabelSuspicious,
			wantConf:  0.6,
		},
		{
			name:    "empty content errors",
			input:   "   ",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := coerceVerdict(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("coerceVerdict error = %v", err)
			}
			if got.Label != tc.wantLabel {
				t.Fatalf("Label = %q, want %q", got.Label, tc.wantLabel)
			}
			if got.Confidence != tc.wantConf {
				t.Fatalf("Confidence = %v, want %v", got.Confidence, tc.wantConf)
			}
		})
	}
}

func TestOpenAIClassifierRoundTrip(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("request body not json: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"content":"{\"label\":\"Fake\",\"reason\":\"logo mismatch\",\"confidence\":0.88}"}}]}`)
	}))
	defer server.Close()

	c := NewOpenAIClassifier("sk-test", "gpt-4o-mini")
	c.baseURL = server.URL

	got, err := c.Classify(context.Background(), "data:image/jpeg;base64,EEEE", map[string]string{"brand": "Unknown"})
	if err != nil {
		t.Fatalf("Classify error = %v", err)
	}
	if got.Label != models.LabelFake {
		t.Fatalf("Label = %q, want %q", got.Label, models.LabelFake)
	}
	if got.Confidence != 0.88 {
		t.Fatalf("Confidence = %v, want 0.88", got.Confidence)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q, want bearer key", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Fatalf("model = %v, want gpt-4o-mini", gotBody["model"])
	}
}

func TestOpenAIClassifierProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewOpenAIClassifier("sk-test", "gpt-4o-mini")
	c.baseURL = server.URL

	if _, err := c.Classify(context.Background(), "data:image/jpeg;base64,FFFF", nil); err == nil {
		t.Fatalf("expected error on provider 429")
	}
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string, map[string]string) (models.Classification, error) {
	return models.Classification{}, errors.New("provider down")
}

func TestClassifyFallsBackToHeuristic(t *testing.T) {
	cfg := quotaTestConfig()
	api := NewAPI(cfg, NewMemStore(), failingClassifier{})

	got := api.classify(context.Background(), "data:image/jpeg;base64,fakefigure", map[string]string{"filename": "photo.jpg"})
	if !models.ValidLabel(got.Label) {
		t.Fatalf("fallback Label = %q not in the valid set", got.Label)
	}
	if got.Label != models.LabelFake {
		t.Fatalf("Label = %q, want %q for a fake-hinted reference", got.Label, models.LabelFake)
	}
}

func TestNewClassifierFromConfig(t *testing.T) {
	cfg := &config.Config{}
	if _, ok := NewClassifierFromConfig(cfg).(HeuristicClassifier); !ok {
		t.Fatalf("no API key should select the heuristic")
	}

	cfg.Classifier.OpenAIKey = "sk-test"
	if _, ok := NewClassifierFromConfig(cfg).(*OpenAIClassifier); !ok {
		t.Fatalf("API key should select the remote provider")
	}
}
