package intel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func geminiReply(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text)
}

func newTestGemini(t *testing.T, handler http.HandlerFunc) (*Gemini, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := NewGemini(GeminiOptions{BaseURL: srv.URL, APIKey: "key"}, zerolog.Nop())
	return client, srv.Close
}

func TestScorePanicParsesJSON(t *testing.T) {
	client, closeSrv := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Fatalf("path %s should target generateContent", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "key" {
			t.Fatal("api key header missing")
		}
		fmt.Fprint(w, geminiReply(`{"panic_score": 85, "highest_risk_headline": "ACME fraud", "risk_reason": "criminal allegation"}`))
	})
	defer closeSrv()

	assessment, err := client.ScorePanic(context.Background(), []string{"ACME fraud"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assessment.Score != 85 {
		t.Fatalf("score = %d, want 85", assessment.Score)
	}
	if assessment.HighestRiskHeadline != "ACME fraud" {
		t.Fatalf("headline = %q", assessment.HighestRiskHeadline)
	}
}

func TestScorePanicStripsCodeFences(t *testing.T) {
	client, closeSrv := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		fenced := "```json\n{\"panic_score\": 70, \"highest_risk_headline\": \"h\", \"risk_reason\": \"r\"}\n```"
		fmt.Fprint(w, geminiReply(fenced))
	})
	defer closeSrv()

	assessment, err := client.ScorePanic(context.Background(), []string{"h"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assessment.Score != 70 {
		t.Fatalf("score = %d, want 70", assessment.Score)
	}
}

func TestScorePanicClampsScore(t *testing.T) {
	client, closeSrv := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, geminiReply(`{"panic_score": 250, "highest_risk_headline": "h", "risk_reason": "r"}`))
	})
	defer closeSrv()

	assessment, err := client.ScorePanic(context.Background(), []string{"h"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assessment.Score != 100 {
		t.Fatalf("score = %d, want clamp to 100", assessment.Score)
	}
}

func TestScorePanicMalformedOutput(t *testing.T) {
	cases := map[string]string{
		"prose":         "I think these headlines look quite alarming.",
		"missing score": `{"highest_risk_headline": "h", "risk_reason": "r"}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			client, closeSrv := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, geminiReply(reply))
			})
			defer closeSrv()

			_, err := client.ScorePanic(context.Background(), []string{"h"})
			if !errors.Is(err, ErrMalformedOutput) {
				t.Fatalf("err = %v, want ErrMalformedOutput", err)
			}
		})
	}
}

func TestScorePanicEmptyHeadlines(t *testing.T) {
	client := NewGemini(GeminiOptions{BaseURL: "http://localhost:1", APIKey: "key"}, zerolog.Nop())
	assessment, err := client.ScorePanic(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assessment.Score != 0 {
		t.Fatalf("score = %d, want zero value", assessment.Score)
	}
}

func TestScorePanicRequiresAPIKey(t *testing.T) {
	client := NewGemini(GeminiOptions{BaseURL: "http://localhost:1"}, zerolog.Nop())
	if _, err := client.ScorePanic(context.Background(), []string{"h"}); err == nil {
		t.Fatal("missing api key should error")
	}
}

func TestGenerateResponsesParsesJSON(t *testing.T) {
	client, closeSrv := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, geminiReply(`{"cease_desist": "cd", "official_denial": "od", "ceo_alert": "ca"}`))
	})
	defer closeSrv()

	responses, err := client.GenerateResponses(context.Background(), ThreatSummary{
		CompanyName:  "ACME",
		FakeHeadline: "ACME fraud",
		DropPct:      -8.2,
		PanicScore:   90,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if responses.CeaseDesist != "cd" || responses.OfficialDenial != "od" || responses.CEOAlert != "ca" {
		t.Fatalf("responses = %+v", responses)
	}
}

func TestGenerateResponsesRejectsEmptyFields(t *testing.T) {
	client, closeSrv := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, geminiReply(`{"cease_desist": "cd", "official_denial": "", "ceo_alert": "ca"}`))
	})
	defer closeSrv()

	_, err := client.GenerateResponses(context.Background(), ThreatSummary{CompanyName: "ACME"})
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("err = %v, want ErrMalformedOutput", err)
	}
}

func TestGenerateAPIErrorSurfaces(t *testing.T) {
	client, closeSrv := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer closeSrv()

	if _, err := client.GenerateResponses(context.Background(), ThreatSummary{CompanyName: "ACME"}); err == nil {
		t.Fatal("http error should surface")
	}
}

func TestGenerateNoCandidates(t *testing.T) {
	client, closeSrv := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	})
	defer closeSrv()

	_, err := client.ScorePanic(context.Background(), []string{"h"})
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("err = %v, want ErrMalformedOutput", err)
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		`{"a":1}`:                 `{"a":1}`,
	}
	for in, want := range cases {
		if got := stripFences(in); got != want {
			t.Fatalf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}
