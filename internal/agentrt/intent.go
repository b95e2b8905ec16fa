package agentrt

import (
	"context"
	"time"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
	"github.com/digitalemployee/orchestrator/internal/config"
	"github.com/digitalemployee/orchestrator/internal/workflow"
)

// appointmentStatusThreshold is the fixed bar business_outputs.status checks
// against, independent of any configured per-intent override (spec.md §4.3
// "status=1 iff intent_strength >= 0.6").
const appointmentStatusThreshold = 0.6

// assetsTopK bounds how many ranked assets the Intent Agent keeps.
const assetsTopK = 5

// IntentAgent is the Intent Agent (spec.md §4.3): one structured LLM call
// producing appointment/assets/audio-output sub-intents, post-processed with
// configurable threshold overrides, asset ranking and business-output
// synthesis.
type IntentAgent struct {
	Extractor IntentExtractor
	Assets    AssetsService
	Config    config.Config
	Name      string // node name, defaults to "intent"
	Now       func() time.Time
}

// Run implements workflow.Agent.
func (a *IntentAgent) Run(ctx context.Context, state workflow.ExecutionState) (workflow.Delta, error) {
	name := a.Name
	if name == "" {
		name = "intent"
	}
	now := a.Now
	if now == nil {
		now = time.Now
	}

	texts := inputTexts(state.Input)
	extracted, err := a.Extractor.Extract(ctx, state.TenantID, state.ThreadID, texts)
	if err != nil {
		return workflow.Delta{}, apperrors.Wrap(apperrors.KindLLMError, err, "intent agent: extract")
	}

	if a.Config.EnableIntentThresholdOverride {
		if extracted.Appointment.Strength < a.Config.AppointmentIntentThreshold {
			extracted.Appointment.Detected = false
		}
		if extracted.AudioOutput.Confidence < a.Config.AudioOutputIntentThreshold {
			extracted.AudioOutput.Detected = false
		}
	}

	result := &workflow.IntentResult{
		Appointment: workflow.AppointmentIntent{
			Detected: extracted.Appointment.Detected,
			Strength: extracted.Appointment.Strength,
			Service:  extracted.Appointment.Service,
			Name:     extracted.Appointment.Name,
			Phone:    extracted.Appointment.Phone,
			Time:     extracted.Appointment.Time,
		},
		Assets: workflow.AssetsIntent{
			Detected: extracted.Assets.Detected,
			Keywords: extracted.Assets.Keywords,
		},
		AudioOutput: workflow.AudioOutputIntent{
			Detected:   extracted.AudioOutput.Detected,
			Confidence: extracted.AudioOutput.Confidence,
		},
	}

	delta := workflow.Delta{AgentName: name, IntentAnalysis: result}

	if result.Assets.Detected && a.Assets != nil {
		items, err := a.Assets.ListAssets(ctx, state.TenantID)
		if err != nil {
			return workflow.Delta{}, apperrors.Wrap(apperrors.KindToolError, err, "intent agent: list assets")
		}
		ranked := rankAssets(items, result.Assets.Keywords, assetsTopK)
		delta.AssetsData = &ranked
	}

	business := synthesizeBusinessOutputs(result.Appointment, now())
	delta.BusinessOutputs = business

	if result.AudioOutput.Detected {
		delta.Actions = append(delta.Actions, "emit_audio")
	}

	return delta, nil
}

// synthesizeBusinessOutputs derives business_outputs from the (possibly
// threshold-overridden) appointment sub-intent (spec.md §4.3): status=1 iff
// intent_strength >= 0.6 AND the extracted time expression resolves to a
// parseable future timestamp.
func synthesizeBusinessOutputs(appt workflow.AppointmentIntent, now time.Time) *workflow.BusinessOutputs {
	out := &workflow.BusinessOutputs{
		Service: appt.Service,
		Name:    appt.Name,
		Phone:   appt.Phone,
	}
	if !appt.Detected {
		return out
	}
	resolved, ok := resolveTimeExpression(appt.Time, now)
	if appt.Strength >= appointmentStatusThreshold && ok {
		out.Status = 1
		out.Time = resolved.UnixMilli()
	}
	return out
}
