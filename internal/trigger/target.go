package trigger

import "pipewatch/internal/pipeline"

// Target is the subset of the tracker the trigger sources drive.
type Target interface {
	ActivateWatcher(triggerRef, triggerLabel string) bool
	StartPipelineTracking(id, sourceRef, label string) (pipeline.Run, error)
	UpdatePipelineStage(id, stage, status string, data map[string]any) error
}
