package api

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"pipewatch/internal/pipeline"
	"pipewatch/internal/watcher"
)

func newService(t *testing.T) (*StatusService, *watcher.Tracker) {
	t.Helper()
	start := time.Date(2025, 4, 5, 6, 7, 8, 0, time.UTC)
	now := start
	tracker := watcher.New(watcher.Options{Clock: func() time.Time {
		now = now.Add(time.Second)
		return now
	}})
	return NewStatusService(tracker), tracker
}

func TestWatcherStatusDTO(t *testing.T) {
	svc, tracker := newService(t)
	tracker.StartWatching()
	tracker.ActivateWatcher("file-1", "leads.csv")

	status := svc.WatcherStatus()
	if !status.IsWatching || status.Mode != "active" || status.WaitingForFile {
		t.Fatalf("unexpected status: %+v", status)
	}
	entry, ok := status.ComponentStatus["ingestion"]
	if !ok || entry.Status != "active" || entry.LastCheck == "" {
		t.Fatalf("unexpected component: %+v", entry)
	}
	if status.ActivatedAt == "" || status.TriggerLabel != "leads.csv" {
		t.Fatalf("missing activation details: %+v", status)
	}
	if len(svc.ComponentStatus()) != len(status.ComponentStatus) {
		t.Fatal("component status mismatch")
	}
}

func TestPipelineStatusAndNotFound(t *testing.T) {
	svc, tracker := newService(t)
	if _, err := tracker.StartPipelineTracking("R1", "file-42", "leads.csv"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tracker.UpdatePipelineStage("R1", "fileProcessing", "started", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := tracker.UpdatePipelineStage("R1", "fileProcessing", "completed", map[string]any{"rowCount": 5}); err != nil {
		t.Fatalf("update: %v", err)
	}

	dto, err := svc.PipelineStatus("R1")
	if err != nil {
		t.Fatalf("PipelineStatus: %v", err)
	}
	if dto.Status != "in_progress" || len(dto.Stages) != 9 {
		t.Fatalf("unexpected pipeline: %+v", dto)
	}
	processing := dto.Stages[1]
	if processing.Name != "fileProcessing" || processing.DurationMs == nil || *processing.DurationMs <= 0 {
		t.Fatalf("unexpected stage dto: %+v", processing)
	}
	if !strings.HasSuffix(dto.StartTime, "Z") {
		t.Fatalf("expected UTC timestamp, got %q", dto.StartTime)
	}

	if _, err := svc.PipelineStatus("missing"); !errors.Is(err, pipeline.ErrUnknownRun) {
		t.Fatalf("expected ErrUnknownRun, got %v", err)
	}
	if _, err := svc.PipelineReport("missing"); !errors.Is(err, pipeline.ErrUnknownRun) {
		t.Fatalf("expected ErrUnknownRun, got %v", err)
	}
	payload, _ := json.Marshal(NewNotFound("missing"))
	if string(payload) != `{"error":"pipeline not found","id":"missing"}` {
		t.Fatalf("unexpected not found payload: %s", payload)
	}
}

func TestReportAndLogsDTO(t *testing.T) {
	svc, tracker := newService(t)
	tracker.StartWatching()
	if _, err := tracker.StartPipelineTracking("R1", "file-42", "leads.csv"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tracker.CompletePipelineTracking("R1", map[string]any{"leads": 3}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	report, err := svc.PipelineReport("R1")
	if err != nil {
		t.Fatalf("PipelineReport: %v", err)
	}
	if report.Pipeline.Status != "completed" || report.Pipeline.TotalDurationMs == nil {
		t.Fatalf("unexpected report header: %+v", report.Pipeline)
	}
	if len(report.Logs) != 2 || report.Logs[0].Event != "PIPELINE STARTED" {
		t.Fatalf("unexpected report logs: %+v", report.Logs)
	}

	all := svc.RecentLogs(0)
	if len(all) != 3 || all[0].PipelineID != "system" {
		t.Fatalf("unexpected recent logs: %+v", all)
	}

	page := svc.Logs(LogFilter{PipelineID: "R1", Limit: 1})
	if len(page.Records) != 1 || page.Records[0].Event != "PIPELINE COMPLETED" {
		t.Fatalf("unexpected filtered logs: %+v", page.Records)
	}
	if page.Next != page.Records[0].Sequence {
		t.Fatalf("unexpected cursor %d", page.Next)
	}
	empty := svc.Logs(LogFilter{Since: page.Next})
	if len(empty.Records) != 0 || empty.Next != page.Next {
		t.Fatalf("expected no records after cursor: %+v", empty)
	}

	active := svc.ActivePipelines()
	if len(active) != 1 || active[0].EvictAt == "" || active[0].Summary["leads"] != 3 {
		t.Fatalf("unexpected active pipelines: %+v", active)
	}
}

func TestNilServiceIsSafe(t *testing.T) {
	var svc *StatusService
	if svc.WatcherStatus().Mode != "stopped" {
		t.Fatal("expected stopped mode from nil service")
	}
	if len(svc.ActivePipelines()) != 0 || len(svc.RecentLogs(5)) != 0 {
		t.Fatal("expected empty results from nil service")
	}
	if NewStatusService(nil) != nil {
		t.Fatal("expected nil service for nil tracker")
	}
}
