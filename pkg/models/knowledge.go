package models

import "time"

// HypothesisStatus tracks a hypothesis through its lifecycle.
type HypothesisStatus string

const (
	HypothesisProposed  HypothesisStatus = "proposed"
	HypothesisTesting   HypothesisStatus = "testing"
	HypothesisConfirmed HypothesisStatus = "confirmed"
	HypothesisRejected  HypothesisStatus = "rejected"
)

// Observation is a raw, uninterpreted fact recorded during analysis: a
// string disassembly looks interesting, a function calls a known libc
// symbol, a byte pattern matches a known magic number. Observations are
// never promoted or retracted, only appended.
type Observation struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Source      string    `json:"source"` // the tool or subagent that produced it
	CreatedAt   time.Time `json:"created_at"`
}

// Hypothesis is a candidate interpretation of one or more observations,
// carrying a confidence estimate and a status reflecting how much testing
// it has survived.
type Hypothesis struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Confidence  float64           `json:"confidence"` // in [0,1]
	Status      HypothesisStatus  `json:"status"`
	Evidence    []string          `json:"evidence"` // Observation or Finding IDs
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Finding is a hypothesis that has been promoted after surviving
// verification: a confirmed fact about the target worth surfacing to the
// operator and to sibling subagents.
type Finding struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Verified    bool      `json:"verified"`
	FromHypID   string    `json:"from_hypothesis_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// clampConfidence constrains a confidence value to [0,1].
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// NewHypothesis constructs a proposed Hypothesis with the given confidence,
// clamped to [0,1].
func NewHypothesis(id, description, category string, confidence float64, evidence ...string) Hypothesis {
	now := time.Now()
	return Hypothesis{
		ID:          id,
		Description: description,
		Category:    category,
		Confidence:  clampConfidence(confidence),
		Status:      HypothesisProposed,
		Evidence:    evidence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// PromoteToFinding converts a confirmed hypothesis into a Finding. It does
// not mutate h; callers are expected to also update the hypothesis's own
// status to HypothesisConfirmed.
func PromoteToFinding(h Hypothesis, id string) Finding {
	return Finding{
		ID:          id,
		Description: h.Description,
		Category:    h.Category,
		Verified:    true,
		FromHypID:   h.ID,
		CreatedAt:   time.Now(),
	}
}

// KnowledgeModel is the shared analysis state threaded through an
// orchestrator run and its subagents: the accumulated observations,
// hypotheses, findings, and statically-known target properties.
type KnowledgeModel struct {
	Target       *TargetInfo  `json:"target,omitempty"`
	Observations []Observation `json:"observations"`
	Hypotheses   []Hypothesis  `json:"hypotheses"`
	Findings     []Finding     `json:"findings"`
}

// NewKnowledgeModel returns an empty KnowledgeModel.
func NewKnowledgeModel() *KnowledgeModel {
	return &KnowledgeModel{}
}

// AddObservation appends an observation.
func (k *KnowledgeModel) AddObservation(o Observation) {
	k.Observations = append(k.Observations, o)
}

// UpsertHypothesis replaces a hypothesis with matching ID, or appends it
// if no match is found.
func (k *KnowledgeModel) UpsertHypothesis(h Hypothesis) {
	for i := range k.Hypotheses {
		if k.Hypotheses[i].ID == h.ID {
			h.CreatedAt = k.Hypotheses[i].CreatedAt
			h.UpdatedAt = time.Now()
			k.Hypotheses[i] = h
			return
		}
	}
	k.Hypotheses = append(k.Hypotheses, h)
}

// AddFinding appends a finding.
func (k *KnowledgeModel) AddFinding(f Finding) {
	k.Findings = append(k.Findings, f)
}

// HypothesisByID looks up a hypothesis by ID.
func (k *KnowledgeModel) HypothesisByID(id string) (Hypothesis, bool) {
	for _, h := range k.Hypotheses {
		if h.ID == id {
			return h, true
		}
	}
	return Hypothesis{}, false
}

// Snapshot returns a shallow copy of the model suitable for injecting into
// a subagent's fresh context without sharing the backing slices.
func (k *KnowledgeModel) Snapshot() KnowledgeModel {
	cp := KnowledgeModel{Target: k.Target}
	cp.Observations = append(cp.Observations, k.Observations...)
	cp.Hypotheses = append(cp.Hypotheses, k.Hypotheses...)
	cp.Findings = append(cp.Findings, k.Findings...)
	return cp
}
