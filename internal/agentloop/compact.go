package agentloop

import (
	"context"

	"github.com/reagent-go/reagent/internal/agentcontext"
	"github.com/reagent-go/reagent/internal/llmagent"
	"github.com/reagent-go/reagent/internal/llmprovider"
	"github.com/reagent-go/reagent/pkg/models"
)

// defaultCompactionTargetFraction is how much of the main provider's
// context window auto_manage targets, per spec.md §4.9's
// target=0.7*context_window.
const defaultCompactionTargetFraction = 0.7

// NewAutoCompactFunc builds the standard CompactFunc: it estimates the
// main provider's context window, targets 70% of it, and summarizes
// through cheapProvider (typically a smaller/cheaper model than the one
// driving the loop itself) via an llmagent.Summarizer.
func NewAutoCompactFunc(ctxStore *agentcontext.Context, mainProvider, cheapProvider llmprovider.Provider) CompactFunc {
	summarizer := llmagent.NewSummarizer(cheapProvider)
	return func(ctx context.Context) (models.CompactionAction, error) {
		target := int(float64(mainProvider.ContextWindow(mainProvider.DefaultModel())) * defaultCompactionTargetFraction)
		return ctxStore.AutoManage(ctx, summarizer, target)
	}
}
