// Package textgen writes the human-readable reasoning attached to decisions
// and traces. The generated text never feeds back into sizing or gating;
// every numeric input to a trade comes from the deterministic pipeline.
package textgen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	http  *resty.Client
	model string
	log   *slog.Logger
}

var _ domain.ReasoningWriter = (*Client)(nil)

func NewClient(log *slog.Logger, baseURL, apiKey, model string, timeout time.Duration) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(timeout)
	return &Client{
		http:  http,
		model: model,
		log:   log.With("component", "textgen"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

const systemPrompt = "You are the journal writer for a paper-trading account. " +
	"Summarize the given analysis and decision in two or three plain sentences. " +
	"Do not suggest different trades and do not invent numbers."

// WriteReasoning asks the model for a short narrative of the decision.
func (c *Client) WriteReasoning(ctx context.Context, sctx domain.SymbolContext, state domain.PortfolioState) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Temperature: 0.3,
		MaxTokens:   200,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: decisionPrompt(sctx, state)},
		},
	}

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("textgen: chat completion: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("textgen: chat completion: status %d", resp.StatusCode())
	}
	if out.Error != nil {
		return "", fmt.Errorf("textgen: chat completion: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("textgen: chat completion: empty response")
	}
	return out.Choices[0].Message.Content, nil
}

func decisionPrompt(sctx domain.SymbolContext, state domain.PortfolioState) string {
	d := sctx.Decision
	ind := sctx.Analysis.Indicators
	return fmt.Sprintf(
		"Symbol %s. Decision %s qty %d at %.2f (confidence %.2f). "+
			"Indicators: RSI %.1f, trend %s, SMA20 %.2f, SMA50 %.2f. Signals: %v. "+
			"Risk stage: %s. Portfolio: cash %.2f, equity %.2f, %d open positions.",
		sctx.Symbol, d.Action, d.Quantity, domain.TicksToDollars(d.PriceTicks), d.Confidence,
		ind.RSI, ind.Trend, ind.SMA20, ind.SMA50, sctx.Analysis.Signals,
		sctx.Risk.Reasoning,
		domain.TicksToDollars(state.CashTicks), domain.TicksToDollars(state.EquityTicks), len(state.Positions),
	)
}
