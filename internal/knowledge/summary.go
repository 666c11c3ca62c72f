package knowledge

import (
	"fmt"
	"strings"
)

// maxSummaryChars bounds the rendered summary injected into a subagent's
// system prompt.
const maxSummaryChars = 16000

// maxRecentObservations caps how many observations appear in full; older
// ones are only reflected in the running total.
const maxRecentObservations = 20

// PromptSummary renders s as prose suitable for injecting into a
// subagent's system prompt: target info, then observations, hypotheses,
// and confirmed findings. dynamicOnly omits the observations section and
// narrows the hypotheses section to those still in status proposed,
// matching the dynamic-analysis subagent's narrower need.
func (s Snapshot) PromptSummary(dynamicOnly bool) string {
	var sections []string

	if s.Target != nil {
		t := s.Target
		sections = append(sections, fmt.Sprintf(
			"## Target\nFormat: %s | Arch: %s | Bits: %d | Endian: %s\nStripped: %t | PIE: %t | NX: %t | Canary: %t | RELRO: %s",
			t.Format, t.Arch, t.Bits, t.Endian, t.Stripped, t.PIE, t.NX, t.Canary, t.RELRO,
		))
	}

	if !dynamicOnly && len(s.Observations) > 0 {
		recent := s.Observations
		if len(recent) > maxRecentObservations {
			recent = recent[len(recent)-maxRecentObservations:]
		}
		var lines []string
		for _, o := range recent {
			lines = append(lines, fmt.Sprintf("  [%s] (%s) %s", o.ID, o.Category, o.Description))
		}
		sections = append(sections, fmt.Sprintf("## Observations (%d total, showing last %d)\n%s",
			len(s.Observations), len(recent), strings.Join(lines, "\n")))
	}

	hyps := s.Hypotheses
	label := "Hypotheses"
	if dynamicOnly {
		var unverified []Hypothesis
		for _, h := range hyps {
			if h.Status == StatusProposed {
				unverified = append(unverified, h)
			}
		}
		hyps = unverified
		label = "Hypotheses Needing Verification"
	}
	if len(hyps) > 0 {
		var lines []string
		for _, h := range hyps {
			lines = append(lines, fmt.Sprintf("  [%s] [%s] (conf: %.1f) %s", h.ID, h.Status, h.Confidence, h.Description))
		}
		sections = append(sections, fmt.Sprintf("## %s\n%s", label, strings.Join(lines, "\n")))
	}

	if len(s.Findings) > 0 {
		var lines []string
		for _, f := range s.Findings {
			lines = append(lines, fmt.Sprintf("  [%s] [%s] %s", f.ID, f.Category, f.Description))
		}
		sections = append(sections, fmt.Sprintf("## Confirmed Findings\n%s", strings.Join(lines, "\n")))
	}

	result := strings.Join(sections, "\n\n")
	if len(result) > maxSummaryChars {
		result = result[:maxSummaryChars] + "\n[... summary truncated]"
	}
	return result
}
