package agentcontext

import (
	"context"
	"fmt"
	"strings"

	"github.com/reagent-go/reagent/pkg/models"
)

// Pruning and compaction tuning, mirroring the analysis behavior: prune
// before compacting (cheaper), protect the most recent messages from
// either pass, and cap the total length of the rendered compaction input.
const (
	PruneThresholdChars = 500
	PruneProtectRecent  = 10
	CompactKeepRecent   = 6
	compactionMaxChars  = 50_000
)

// CompactionSystemPrompt is the system prompt given to the summarizer
// model during compaction.
const CompactionSystemPrompt = `You are a context compactor for a binary analysis agent. Your job is to summarize the conversation so far into a compact, information-dense summary that preserves all critical details.

Rules:
- Preserve ALL addresses, function names, offsets, register values, and hex data.
- Preserve ALL hypotheses, findings, and their verification status.
- Preserve the analysis goal and current progress.
- Summarize tool outputs by their conclusions, not raw data.
- Use bullet points for density.
- Be precise and technical - this summary replaces the conversation history.
- Maximum 2000 words.`

const compactionUserTemplate = `Summarize the following analysis conversation. Preserve all critical technical details (addresses, function names, findings, hypotheses). The summary will replace the conversation history.

---

%s`

// Summarizer generates a single text completion, used by Compact to
// produce the summary message. An llmagent adapter satisfies this with a
// single tool-less completion call to a (possibly cheaper) model.
type Summarizer interface {
	Summarize(ctx context.Context, system, userPrompt string) (string, error)
}

// Prune replaces oversized tool_result content with a short stub and
// drops thinking parts from messages older than PruneProtectRecent,
// leaving conversation structure (role, tool_call_id) intact. It returns
// the number of messages changed.
func (c *Context) Prune() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := len(c.messages) - PruneProtectRecent
	pruned := 0

	for i, msg := range c.messages {
		if i >= cutoff {
			break
		}
		if msg.Role != models.RoleTool && msg.Role != models.RoleAssistant {
			continue
		}

		changed := false
		newParts := make([]models.Part, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			switch {
			case p.Kind == models.PartToolResult && len(p.ToolResultContent) > PruneThresholdChars:
				stub := fmt.Sprintf("[pruned: %d chars]", len(p.ToolResultContent))
				newParts = append(newParts, models.ToolResultPart(p.ToolCallID, stub, p.ToolResultIsError))
				changed = true
			case p.Kind == models.PartThinking:
				changed = true // dropped entirely
			default:
				newParts = append(newParts, p)
			}
		}

		if changed {
			c.messages[i] = &models.Message{Role: msg.Role, Parts: newParts, CreatedAt: msg.CreatedAt}
			pruned++
		}
	}

	if pruned == 0 {
		return 0, nil
	}
	return pruned, c.rewriteLocked()
}

// Compact summarizes every message except the most recent keepRecent via
// summarizer, then replaces the log with a single system message holding
// the summary followed by the protected recent messages. It returns the
// generated summary, or an empty string if compaction did not run (too
// few messages, or nothing to summarize).
func (c *Context) Compact(ctx context.Context, summarizer Summarizer, keepRecent int) (string, error) {
	if keepRecent <= 0 {
		keepRecent = CompactKeepRecent
	}

	c.mu.Lock()
	if len(c.messages) <= keepRecent {
		c.mu.Unlock()
		return "", nil
	}
	old := make([]*models.Message, len(c.messages)-keepRecent)
	copy(old, c.messages[:len(c.messages)-keepRecent])
	recent := make([]*models.Message, keepRecent)
	copy(recent, c.messages[len(c.messages)-keepRecent:])
	c.mu.Unlock()

	rendered := renderForSummary(old, compactionMaxChars)
	if strings.TrimSpace(rendered) == "" {
		return "", nil
	}

	summary, err := summarizer.Summarize(ctx, CompactionSystemPrompt, fmt.Sprintf(compactionUserTemplate, rendered))
	if err != nil {
		return "", fmt.Errorf("agentcontext: compact: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return "", nil
	}

	summaryMsg := models.NewMessage(models.RoleSystem, models.TextPart(
		fmt.Sprintf("[Context compacted - summary of prior %d messages]\n\n%s", len(old), summary),
	))

	c.mu.Lock()
	c.messages = append([]*models.Message{summaryMsg}, recent...)
	err = c.rewriteLocked()
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	return summary, nil
}

// AutoManage estimates the context against targetTokens and, if over
// budget, prunes first and compacts only if pruning wasn't enough. It
// returns the action taken.
func (c *Context) AutoManage(ctx context.Context, summarizer Summarizer, targetTokens int) (models.CompactionAction, error) {
	if c.EstimateTokens() <= targetTokens {
		return models.CompactionNone, nil
	}

	prunedCount, err := c.Prune()
	if err != nil {
		return models.CompactionNone, err
	}

	if c.EstimateTokens() <= targetTokens {
		if prunedCount > 0 {
			return models.CompactionPruned, nil
		}
		return models.CompactionNone, nil
	}

	summary, err := c.Compact(ctx, summarizer, CompactKeepRecent)
	if err != nil {
		return models.CompactionNone, err
	}
	if summary == "" {
		if prunedCount > 0 {
			return models.CompactionPruned, nil
		}
		return models.CompactionNone, nil
	}
	if prunedCount > 0 {
		return models.CompactionPrunedCompacted, nil
	}
	return models.CompactionCompacted, nil
}

// renderForSummary flattens messages into readable text for the
// compaction prompt, capping total length and skipping thinking parts
// entirely (internal reasoning the summarizer doesn't need to preserve).
func renderForSummary(messages []*models.Message, maxChars int) string {
	var sb strings.Builder
	total := 0

	for _, msg := range messages {
		if total >= maxChars {
			sb.WriteString("[... earlier messages omitted for brevity]\n\n")
			break
		}
		role := strings.ToUpper(string(msg.Role))

		for _, p := range msg.Parts {
			switch p.Kind {
			case models.PartThinking:
				continue
			case models.PartText:
				text := p.Text
				if len(text) > 2000 {
					text = text[:2000]
				}
				sb.WriteString(fmt.Sprintf("[%s]: %s\n\n", role, text))
				total += len(text)
			case models.PartToolCall:
				args := string(p.ToolArguments)
				if len(args) > 200 {
					args = args[:200]
				}
				sb.WriteString(fmt.Sprintf("[%s TOOL CALL]: %s(%s)\n\n", role, p.ToolName, args))
				total += 50 + len(p.ToolName)
			case models.PartToolResult:
				content := p.ToolResultContent
				if len(content) > 1000 {
					content = fmt.Sprintf("%s... [%d chars total]", content[:1000], len(p.ToolResultContent))
				}
				errTag := ""
				if p.ToolResultIsError {
					errTag = " [ERROR]"
				}
				sb.WriteString(fmt.Sprintf("[TOOL RESULT%s]: %s\n\n", errTag, content))
				total += len(content)
			}
		}
	}

	return strings.TrimSpace(sb.String())
}
