package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crisiswatch/internal/model"
)

// GeminiOptions parameterise the Gemini text-generation client.
type GeminiOptions struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Gemini implements both LLM-backed collaborator contracts against the
// Gemini generateContent REST API.
type Gemini struct {
	opts    GeminiOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewGemini constructs a Gemini client.
func NewGemini(opts GeminiOptions, logger zerolog.Logger) *Gemini {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash-lite"
	}

	return &Gemini{
		opts:    opts,
		logger:  logger.With().Str("component", "intel").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// ScorePanic rates the headline batch 0-100 for panic indicators and
// identifies the single highest-risk headline.
func (g *Gemini) ScorePanic(ctx context.Context, headlines []string) (model.PanicAssessment, error) {
	if len(headlines) == 0 {
		return model.PanicAssessment{}, nil
	}

	var listing strings.Builder
	for i, h := range headlines {
		fmt.Fprintf(&listing, "%d. %s\n", i+1, h)
	}

	prompt := fmt.Sprintf(`You are a financial misinformation analyst. Analyze these headlines for PANIC indicators.

HEADLINES:
%s
PANIC INDICATORS to look for:
- Emergency words: ARREST, RAID, BANKRUPTCY, COLLAPSE, CRISIS, FRAUD
- Urgent language: "BREAKING", "JUST IN", "URGENT"
- Extreme claims: "Biggest scandal", "Massive losses", "Complete failure"
- Fear triggers: "Investors panic", "Stock crashes", "Market meltdown"

TASK:
1. Rate the overall PANIC SCORE from 0-100 (0=calm news, 100=maximum panic)
2. Identify the HIGHEST RISK headline (the one most likely to cause stock drops)
3. Explain WHY that headline is risky in ONE sentence

Return ONLY valid JSON in this exact format:
{"panic_score": <0-100>, "highest_risk_headline": "<exact headline text>", "risk_reason": "<one sentence explanation>"}`, listing.String())

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return model.PanicAssessment{}, err
	}

	var decoded struct {
		PanicScore          *int   `json:"panic_score"`
		HighestRiskHeadline string `json:"highest_risk_headline"`
		RiskReason          string `json:"risk_reason"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &decoded); err != nil {
		return model.PanicAssessment{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if decoded.PanicScore == nil {
		return model.PanicAssessment{}, fmt.Errorf("%w: panic_score missing", ErrMalformedOutput)
	}

	score := clampScore(*decoded.PanicScore)
	g.logger.Debug().Int("panic_score", score).Int("headlines", len(headlines)).Msg("panic scoring complete")

	return model.PanicAssessment{
		Score:               score,
		HighestRiskHeadline: decoded.HighestRiskHeadline,
		RiskReason:          decoded.RiskReason,
	}, nil
}

// GenerateResponses drafts the cease-and-desist, investor statement and
// internal alert for a verified threat.
func (g *Gemini) GenerateResponses(ctx context.Context, summary ThreatSummary) (model.ResponseSet, error) {
	prompt := fmt.Sprintf(`You are a Crisis Communication Officer for %s.

SITUATION:
A false news story has just gone viral and caused immediate market damage:

- FALSE HEADLINE: "%s"
- STOCK IMPACT: Stock dropped %.1f%% within minutes
- PANIC SCORE: %d/100
- VERDICT: This is verified misinformation that caused financial harm

YOUR TASK:
Draft THREE crisis responses. Be professional, firm, and fact-based.

1. CEASE & DESIST (reply to the source, max 280 characters, firm legal warning, demand retraction)
2. OFFICIAL DENIAL (investor relations statement, 2-3 sentences, calm and factual)
3. CEO ALERT (internal SMS to leadership, max 160 characters, urgent key facts)

Return ONLY valid JSON in this exact format:
{"cease_desist": "<text>", "official_denial": "<text>", "ceo_alert": "<text>"}`,
		summary.CompanyName, summary.FakeHeadline, math.Abs(summary.DropPct), summary.PanicScore)

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return model.ResponseSet{}, err
	}

	var decoded model.ResponseSet
	if err := json.Unmarshal([]byte(stripFences(raw)), &decoded); err != nil {
		return model.ResponseSet{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if decoded.CeaseDesist == "" || decoded.OfficialDenial == "" || decoded.CEOAlert == "" {
		return model.ResponseSet{}, fmt.Errorf("%w: response field empty", ErrMalformedOutput)
	}

	return decoded, nil
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	if g.opts.APIKey == "" {
		return "", errors.New("gemini api key not configured")
	}

	payload := generateRequest{}
	payload.Contents = append(payload.Contents, content{Parts: []part{{Text: prompt}}})

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.opts.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.opts.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payloadBytes)))
	}

	var decoded generateResponse
	if err := json.Unmarshal(payloadBytes, &decoded); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates returned", ErrMalformedOutput)
	}

	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

// stripFences removes markdown code fences the model sometimes wraps
// around its JSON.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.Index(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

var _ PanicScorer = (*Gemini)(nil)
var _ ResponseGenerator = (*Gemini)(nil)
