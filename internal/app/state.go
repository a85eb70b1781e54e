package app

import (
	"context"
	"log/slog"
	"time"

	"dtools/pkg/image"
)

// ExecutionStage names the stages of the build and run workflows.
type ExecutionStage string

const (
	StageBaseImage  ExecutionStage = "base-image"
	StageUserLayer  ExecutionStage = "user-layer"
	StageCheckImage ExecutionStage = "check-image"
	StageContainer  ExecutionStage = "container"
)

// ExecutionState tracks one invocation while its stages run.
type ExecutionState struct {
	Tool                string
	Tag                 image.Tag
	DryRun              bool
	LastSuccessfulStage ExecutionStage
	StartedAt           time.Time
}

func newState(tool string, tag image.Tag, dryRun bool) *ExecutionState {
	return &ExecutionState{
		Tool:      tool,
		Tag:       tag,
		DryRun:    dryRun,
		StartedAt: time.Now(),
	}
}

// runStages executes stages in order and stops at the first failure.
// The last stage of a real run usually replaces the process and never returns.
func runStages(ctx context.Context, stages []Stage, state *ExecutionState) error {
	for _, stage := range stages {
		slog.Info("Executing stage", "tool", state.Tool, "stage", stage.Name(), "tag", state.Tag.String(), "dryRun", state.DryRun)

		if err := stage.Execute(ctx, state); err != nil {
			slog.Info("Stage failed", "tool", state.Tool, "stage", stage.Name(), "lastSuccessfulStage", state.LastSuccessfulStage)
			return err
		}
		state.LastSuccessfulStage = ExecutionStage(stage.Name())
	}

	slog.Info("Workflow completed", "tool", state.Tool, "tag", state.Tag.String(), "duration", time.Since(state.StartedAt))
	return nil
}
