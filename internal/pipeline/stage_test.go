package pipeline

import "testing"

func TestStageEventName(t *testing.T) {
	cases := map[string]string{
		stageEventName(StageFileProcessing, StageStarted):  "STAGE_FILEPROCESSING_STARTED",
		stageEventName(StageHubspotSync, StageFailed):      "STAGE_HUBSPOTSYNC_FAILED",
		stageEventName(StageEventTracking, StageCompleted): "STAGE_EVENTTRACKING_COMPLETED",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("got %q want %q", got, want)
		}
	}
}

func TestParseStageStatusRejectsPending(t *testing.T) {
	if _, ok := ParseStageStatus("pending"); ok {
		t.Fatal("pending is not a valid update status")
	}
	if status, ok := ParseStageStatus(" COMPLETED "); !ok || status != StageCompleted {
		t.Fatalf("unexpected parse: %q %v", status, ok)
	}
}

func TestEveryStageHasComponentAndIndex(t *testing.T) {
	for i, stage := range AllStages() {
		if stage.Component() == "pipeline" {
			t.Fatalf("stage %s has no component", stage)
		}
		if stage.Index() != i {
			t.Fatalf("stage %s index %d want %d", stage, stage.Index(), i)
		}
	}
	if Stage("bogus").Index() != -1 {
		t.Fatal("expected -1 for unknown stage")
	}
}

func TestParseStageMatchesCanonicalNamesIgnoringCase(t *testing.T) {
	for _, name := range []string{"fileProcessing", " fileProcessing ", "FILEPROCESSING", "fileprocessing"} {
		if stage, ok := ParseStage(name); !ok || stage != StageFileProcessing {
			t.Fatalf("ParseStage(%q) = %q %v", name, stage, ok)
		}
	}
	for _, name := range []string{"", "file_processing", "fileProcess", "unknownStage"} {
		if _, ok := ParseStage(name); ok {
			t.Fatalf("ParseStage(%q) should reject names outside the stage set", name)
		}
	}
}
