package textgen

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// TemplateWriter renders reasoning from the pipeline outputs without any
// external service. Used when no API key is configured and as the fallback
// when the remote writer fails; cycles never block on narrative text.
type TemplateWriter struct{}

var _ domain.ReasoningWriter = (*TemplateWriter)(nil)

func NewTemplateWriter() *TemplateWriter { return &TemplateWriter{} }

func (TemplateWriter) WriteReasoning(_ context.Context, sctx domain.SymbolContext, _ domain.PortfolioState) (string, error) {
	d := sctx.Decision
	if d.Action == domain.ActionHold {
		return fmt.Sprintf("%s: holding. %s", sctx.Symbol, d.Reasoning), nil
	}
	return fmt.Sprintf("%s: %s %d shares at %.2f (confidence %.2f). %s",
		sctx.Symbol, d.Action, d.Quantity, domain.TicksToDollars(d.PriceTicks), d.Confidence, d.Reasoning), nil
}
