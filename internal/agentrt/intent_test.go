package agentrt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digitalemployee/orchestrator/internal/config"
	"github.com/digitalemployee/orchestrator/internal/workflow"
)

type stubExtractor struct {
	out IntentExtraction
	err error
}

func (s *stubExtractor) Extract(_ context.Context, _, _ string, _ []string) (IntentExtraction, error) {
	return s.out, s.err
}

type stubAssets struct {
	items []Asset
}

func (s *stubAssets) ListAssets(_ context.Context, _ string) ([]Asset, error) { return s.items, nil }

func fixedNow() time.Time { return time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC) }

func TestIntentAgent_BusinessOutputsStatusOneWhenStrongAndResolvable(t *testing.T) {
	extraction := IntentExtraction{}
	extraction.Appointment.Detected = true
	extraction.Appointment.Strength = 0.8
	extraction.Appointment.Time = "明天下午"
	extraction.Appointment.Service = "viewing"

	agent := &IntentAgent{
		Extractor: &stubExtractor{out: extraction},
		Config:    config.Config{},
		Now:       fixedNow,
	}
	delta, err := agent.Run(context.Background(), workflow.ExecutionState{})
	require.NoError(t, err)
	require.NotNil(t, delta.BusinessOutputs)
	require.Equal(t, 1, delta.BusinessOutputs.Status)
	require.Greater(t, delta.BusinessOutputs.Time, fixedNow().UnixMilli())
}

func TestIntentAgent_BusinessOutputsStatusZeroWhenTimeUnresolvable(t *testing.T) {
	extraction := IntentExtraction{}
	extraction.Appointment.Detected = true
	extraction.Appointment.Strength = 0.9
	extraction.Appointment.Time = "有空的时候"

	agent := &IntentAgent{Extractor: &stubExtractor{out: extraction}, Now: fixedNow}
	delta, err := agent.Run(context.Background(), workflow.ExecutionState{})
	require.NoError(t, err)
	require.Equal(t, 0, delta.BusinessOutputs.Status)
	require.Zero(t, delta.BusinessOutputs.Time)
}

func TestIntentAgent_ThresholdOverrideSuppressesWeakAppointment(t *testing.T) {
	extraction := IntentExtraction{}
	extraction.Appointment.Detected = true
	extraction.Appointment.Strength = 0.3
	extraction.Appointment.Time = "明天下午"

	agent := &IntentAgent{
		Extractor: &stubExtractor{out: extraction},
		Config: config.Config{
			EnableIntentThresholdOverride: true,
			AppointmentIntentThreshold:    0.5,
		},
		Now: fixedNow,
	}
	delta, err := agent.Run(context.Background(), workflow.ExecutionState{})
	require.NoError(t, err)
	require.False(t, delta.IntentAnalysis.Appointment.Detected)
}

func TestIntentAgent_AssetsDetectedRanksAndAttachesEmitAudio(t *testing.T) {
	extraction := IntentExtraction{}
	extraction.Assets.Detected = true
	extraction.Assets.Keywords = []string{"villa"}
	extraction.AudioOutput.Detected = true
	extraction.AudioOutput.Confidence = 0.9

	agent := &IntentAgent{
		Extractor: &stubExtractor{out: extraction},
		Assets:    &stubAssets{items: []Asset{{ID: "1", Name: "villa listing"}}},
		Now:       fixedNow,
	}
	delta, err := agent.Run(context.Background(), workflow.ExecutionState{})
	require.NoError(t, err)
	require.NotNil(t, delta.AssetsData)
	require.Len(t, delta.AssetsData.Items, 1)
	require.Contains(t, delta.Actions, "emit_audio")
}
