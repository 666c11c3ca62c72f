package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reagent-go/reagent/internal/knowledge"
	"github.com/reagent-go/reagent/internal/toolregistry"
	"github.com/reagent-go/reagent/pkg/models"
)

// updateModelArgs is the parameter schema for the update_model tool.
// Not every field is meaningful for every action: observation uses
// Description/Category, hypothesis adds Confidence, update_hypothesis
// uses HypothesisID/Status/Confidence, and finding uses either
// HypothesisID (promotion) or Description/Category (direct).
type updateModelArgs struct {
	Action       string   `json:"action" jsonschema:"required,description=one of observation / hypothesis / update_hypothesis / finding (synonyms accepted)"`
	Description  string   `json:"description,omitempty"`
	Category     string   `json:"category,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	HypothesisID string   `json:"hypothesis_id,omitempty"`
	Status       string   `json:"status,omitempty"`
}

func newUpdateModelTool(o *Orchestrator) *toolregistry.FuncTool {
	schema := toolregistry.GenerateSchema[updateModelArgs]()
	return toolregistry.NewFuncTool(
		"update_model",
		"Record an observation, propose or update a hypothesis, or confirm a finding in the shared knowledge model.",
		schema,
		func(ctx context.Context, raw json.RawMessage) models.ToolExecutionResult {
			return updateModel(o, raw)
		},
	)
}

// normalizeAction maps the common synonyms an LLM tends to use onto the
// four canonical update_model actions.
func normalizeAction(action string) string {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "observation", "obs", "observe", "fact", "note":
		return "observation"
	case "hypothesis", "hypo", "hypothesize", "theory", "claim", "propose":
		return "hypothesis"
	case "update_hypothesis", "update", "revise", "revise_hypothesis", "set_status":
		return "update_hypothesis"
	case "finding", "find", "confirm", "promote", "verified":
		return "finding"
	default:
		return strings.ToLower(strings.TrimSpace(action))
	}
}

func updateModel(o *Orchestrator, raw json.RawMessage) models.ToolExecutionResult {
	var args updateModelArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return models.Err(fmt.Sprintf("update_model: invalid arguments: %v", err))
	}

	model := o.knowledgeModel()
	w := o.wireBus()

	switch normalizeAction(args.Action) {
	case "observation":
		if args.Description == "" {
			return models.Err("update_model: observation requires a description")
		}
		obs := model.AddObservation(args.Description, args.Category)
		if w != nil {
			w.Send(models.NewObservationEvent(obs.Description, obs.Category))
		}
		return models.Ok(fmt.Sprintf("recorded observation %s", obs.ID))

	case "hypothesis":
		if args.Description == "" {
			return models.Err("update_model: hypothesis requires a description")
		}
		confidence := 0.5
		if args.Confidence != nil {
			confidence = *args.Confidence
		}
		hyp := model.AddHypothesis(args.Description, args.Category, confidence)
		if w != nil {
			w.Send(models.NewHypothesisEvent(hyp.ID, hyp.Description, string(hyp.Status), hyp.Confidence))
		}
		return models.Ok(fmt.Sprintf("recorded hypothesis %s", hyp.ID))

	case "update_hypothesis":
		if args.HypothesisID == "" || args.Status == "" {
			return models.Err("update_model: update_hypothesis requires hypothesis_id and status")
		}
		hyp, err := model.UpdateHypothesis(args.HypothesisID, knowledge.HypothesisStatus(args.Status), args.Confidence)
		if err != nil {
			return models.Err(fmt.Sprintf("update_model: %v", err))
		}
		if w != nil {
			w.Send(models.NewHypothesisEvent(hyp.ID, hyp.Description, string(hyp.Status), hyp.Confidence))
		}
		return models.Ok(fmt.Sprintf("updated hypothesis %s to %s", hyp.ID, hyp.Status))

	case "finding":
		if args.HypothesisID != "" {
			finding, err := model.Promote(args.HypothesisID)
			if err != nil {
				return models.Err(fmt.Sprintf("update_model: %v", err))
			}
			if w != nil {
				w.Send(models.NewFindingEvent(finding.Description, finding.Category, finding.Verified))
			}
			return models.Ok(fmt.Sprintf("promoted hypothesis %s to finding %s", args.HypothesisID, finding.ID))
		}
		if args.Description == "" {
			return models.Err("update_model: finding requires either hypothesis_id or a description")
		}
		finding := model.AddFinding(args.Description, args.Category, true)
		if w != nil {
			w.Send(models.NewFindingEvent(finding.Description, finding.Category, finding.Verified))
		}
		return models.Ok(fmt.Sprintf("recorded finding %s", finding.ID))

	default:
		return models.Err(fmt.Sprintf("update_model: unknown action %q", args.Action))
	}
}
