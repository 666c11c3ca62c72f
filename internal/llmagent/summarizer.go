package llmagent

import (
	"context"
	"fmt"

	"github.com/reagent-go/reagent/internal/llmprovider"
	"github.com/reagent-go/reagent/pkg/models"
)

// Summarizer adapts a llmprovider.Provider to agentcontext.Summarizer: a
// single Generate call (streamed and assembled) with no tools available, so
// compaction can run against a cheaper model without depending on
// agentcontext importing this package back.
type Summarizer struct {
	Provider llmprovider.Provider
}

// NewSummarizer constructs a Summarizer backed by provider.
func NewSummarizer(provider llmprovider.Provider) *Summarizer {
	return &Summarizer{Provider: provider}
}

// Summarize issues one completion request and returns its text, per
// agentcontext.Summarizer.
func (s *Summarizer) Summarize(ctx context.Context, system, userPrompt string) (string, error) {
	msg, _, _, err := Generate(ctx, s.Provider, system, []*models.Message{
		models.NewMessage(models.RoleUser, models.TextPart(userPrompt)),
	}, nil, Callbacks{})
	if err != nil {
		return "", fmt.Errorf("llmagent: summarize: %w", err)
	}
	return msg.Text(), nil
}
