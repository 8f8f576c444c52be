package pipeline

import "strings"

// Stage names one phase of a pipeline run.
type Stage string

const (
	StageFileDetection       Stage = "fileDetection"
	StageFileProcessing      Stage = "fileProcessing"
	StageLeadProcessing      Stage = "leadProcessing"
	StageEmailCollection     Stage = "emailCollection"
	StageDatabaseIntegration Stage = "databaseIntegration"
	StageHubspotSync         Stage = "hubspotSync"
	StageSequenceInit        Stage = "sequenceInit"
	StageEmailSending        Stage = "emailSending"
	StageEventTracking       Stage = "eventTracking"
)

var allStages = []Stage{
	StageFileDetection,
	StageFileProcessing,
	StageLeadProcessing,
	StageEmailCollection,
	StageDatabaseIntegration,
	StageHubspotSync,
	StageSequenceInit,
	StageEmailSending,
	StageEventTracking,
}

// stageComponents attributes each stage to the collaborator that performs it.
var stageComponents = map[Stage]string{
	StageFileDetection:       "ingestion",
	StageFileProcessing:      "processing",
	StageLeadProcessing:      "processing",
	StageEmailCollection:     "enrichment",
	StageDatabaseIntegration: "persistence",
	StageHubspotSync:         "crm_sync",
	StageSequenceInit:        "delivery",
	StageEmailSending:        "delivery",
	StageEventTracking:       "tracking",
}

// AllStages returns every stage in workflow order.
func AllStages() []Stage {
	return append([]Stage(nil), allStages...)
}

// ParseStage resolves a stage name. Matching is exact on the canonical
// camelCase name, with a case-insensitive fallback.
func ParseStage(name string) (Stage, bool) {
	trimmed := strings.TrimSpace(name)
	for _, stage := range allStages {
		if string(stage) == trimmed {
			return stage, true
		}
	}
	for _, stage := range allStages {
		if strings.EqualFold(string(stage), trimmed) {
			return stage, true
		}
	}
	return "", false
}

// Component returns the collaborator component responsible for the stage.
func (s Stage) Component() string {
	if name, ok := stageComponents[s]; ok {
		return name
	}
	return "pipeline"
}

// Index returns the workflow position of the stage, or -1.
func (s Stage) Index() int {
	for i, stage := range allStages {
		if stage == s {
			return i
		}
	}
	return -1
}

// StageStatus is a stage record's state.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageStarted   StageStatus = "started"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// ParseStageStatus resolves the statuses accepted by UpdateStage.
func ParseStageStatus(value string) (StageStatus, bool) {
	switch StageStatus(strings.ToLower(strings.TrimSpace(value))) {
	case StageStarted:
		return StageStarted, true
	case StageCompleted:
		return StageCompleted, true
	case StageFailed:
		return StageFailed, true
	default:
		return "", false
	}
}

// Terminal reports whether the status is final.
func (s StageStatus) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

func stageEventName(stage Stage, status StageStatus) string {
	return "STAGE_" + strings.ToUpper(string(stage)) + "_" + strings.ToUpper(string(status))
}
