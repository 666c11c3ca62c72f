// Package knowledge implements the shared knowledge base accumulated
// across an analysis run: raw observations, interpretive hypotheses that
// need verification, and confirmed findings promoted from them. Every
// agent and subagent dispatched by internal/orchestrator reads and writes
// the same *Model instance.
package knowledge

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reagent-go/reagent/pkg/models"
)

// HypothesisStatus tracks a hypothesis through its verification lifecycle.
type HypothesisStatus string

const (
	StatusProposed  HypothesisStatus = "proposed"
	StatusTesting   HypothesisStatus = "testing"
	StatusConfirmed HypothesisStatus = "confirmed"
	StatusRejected  HypothesisStatus = "rejected"
)

// Observation is a raw fact recorded during analysis: disassembly output,
// a string extraction, a register dump. It carries no interpretation.
type Observation struct {
	ID          string
	Description string
	Category    string
	RecordedAt  time.Time
}

// Hypothesis is an interpretive claim proposed by an agent, pending
// verification: e.g. "sub_401230 is an AES-128-ECB routine".
type Hypothesis struct {
	ID          string
	Description string
	Category    string
	Confidence  float64
	Status      HypothesisStatus
	Evidence    []string
}

// Finding is a verified, confirmed fact about the binary — either
// promoted from a confirmed hypothesis or recorded directly.
type Finding struct {
	ID          string
	Description string
	Category    string
	Verified    bool
	Evidence    []string
}

// Snapshot is a point-in-time copy of the model, safe to read without
// holding the model's lock. It is what gets rendered into a subagent's
// injected system-prompt context.
type Snapshot struct {
	Target       *models.TargetInfo
	Observations []Observation
	Hypotheses   []Hypothesis
	Findings     []Finding
}

// Model is the shared, concurrency-safe knowledge base for one analysis
// run.
type Model struct {
	mu           sync.RWMutex
	target       *models.TargetInfo
	observations []Observation
	hypotheses   []Hypothesis
	findings     []Finding
}

// New constructs an empty Model.
func New() *Model {
	return &Model{}
}

// SetTarget records the statically-known properties of the binary under
// analysis, as established by the triage subagent.
func (m *Model) SetTarget(info models.TargetInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.target = &info
}

// Target returns the recorded target info, or nil if triage hasn't run
// yet.
func (m *Model) Target() *models.TargetInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.target
}

// AddObservation records a raw fact and returns it.
func (m *Model) AddObservation(description, category string) Observation {
	obs := Observation{
		ID:          newID(),
		Description: description,
		Category:    category,
		RecordedAt:  time.Now(),
	}
	m.mu.Lock()
	m.observations = append(m.observations, obs)
	m.mu.Unlock()
	return obs
}

// AddHypothesis records an interpretive claim, starting in status
// "proposed", and returns it.
func (m *Model) AddHypothesis(description, category string, confidence float64) Hypothesis {
	hyp := Hypothesis{
		ID:          newID(),
		Description: description,
		Category:    category,
		Confidence:  confidence,
		Status:      StatusProposed,
	}
	m.mu.Lock()
	m.hypotheses = append(m.hypotheses, hyp)
	m.mu.Unlock()
	return hyp
}

// UpdateHypothesis changes a hypothesis's status and, if confidence is
// non-nil, its confidence. It returns an error if no hypothesis with id
// exists.
func (m *Model) UpdateHypothesis(id string, status HypothesisStatus, confidence *float64) (Hypothesis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.hypotheses {
		if m.hypotheses[i].ID == id {
			m.hypotheses[i].Status = status
			if confidence != nil {
				m.hypotheses[i].Confidence = *confidence
			}
			return m.hypotheses[i], nil
		}
	}
	return Hypothesis{}, fmt.Errorf("knowledge: hypothesis %q not found", id)
}

// AddFinding records a confirmed fact directly, without going through
// hypothesis promotion — for findings established by definitive evidence
// rather than an agent's prior claim. See Promote for the other path to
// a Finding.
func (m *Model) AddFinding(description, category string, verified bool) Finding {
	finding := Finding{
		ID:          newID(),
		Description: description,
		Category:    category,
		Verified:    verified,
	}
	m.mu.Lock()
	m.findings = append(m.findings, finding)
	m.mu.Unlock()
	return finding
}

// Promote confirms hypothesisID (status=confirmed, confidence=1.0) and
// creates a Finding carrying its description, category, and evidence —
// the one promotion rule the data model names.
func (m *Model) Promote(hypothesisID string) (*Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.hypotheses {
		if m.hypotheses[i].ID != hypothesisID {
			continue
		}
		m.hypotheses[i].Status = StatusConfirmed
		m.hypotheses[i].Confidence = 1.0

		finding := Finding{
			ID:          newID(),
			Description: m.hypotheses[i].Description,
			Category:    m.hypotheses[i].Category,
			Verified:    true,
			Evidence:    append([]string(nil), m.hypotheses[i].Evidence...),
		}
		m.findings = append(m.findings, finding)
		return &finding, nil
	}
	return nil, fmt.Errorf("knowledge: hypothesis %q not found", hypothesisID)
}

// Snapshot returns a point-in-time copy of the entire model.
func (m *Model) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Target:       m.target,
		Observations: append([]Observation(nil), m.observations...),
		Hypotheses:   append([]Hypothesis(nil), m.hypotheses...),
		Findings:     append([]Finding(nil), m.findings...),
	}
}

func newID() string {
	return uuid.NewString()[:8]
}
