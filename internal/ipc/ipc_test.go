package ipc_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pipewatch/internal/daemon"
	"pipewatch/internal/ipc"
	"pipewatch/internal/logging"
	"pipewatch/internal/testsupport"
)

func startServer(t *testing.T, opts ...testsupport.ConfigOption) (*daemon.Daemon, *ipc.Client) {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithoutAPI()}, opts...)...)
	logger := logging.NewNop()
	d, err := daemon.New(cfg, logger, daemon.Options{})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return d, client
}

func TestIPCServerClient(t *testing.T) {
	d, client := startServer(t)

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}
	again, err := client.Start()
	if err != nil {
		t.Fatalf("second Start RPC failed: %v", err)
	}
	if again.Started || again.Message != daemon.ErrAlreadyRunning.Error() {
		t.Fatalf("expected already running message, got %+v", again)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || status.Watcher.Mode != "standby" {
		t.Fatalf("unexpected status %+v", status)
	}

	activated, err := client.Activate("inbox/leads.csv", "leads.csv")
	if err != nil {
		t.Fatalf("Activate RPC failed: %v", err)
	}
	if !activated.Activated || activated.Watcher.Mode != "active" {
		t.Fatalf("expected activation, got %+v", activated)
	}

	started, err := client.StartPipeline(ipc.StartPipelineRequest{SourceRef: "inbox/leads.csv", Label: "leads.csv"})
	if err != nil {
		t.Fatalf("StartPipeline RPC failed: %v", err)
	}
	id := started.Pipeline.ID
	if id == "" {
		t.Fatal("expected generated pipeline id")
	}

	updated, err := client.UpdateStage(ipc.UpdateStageRequest{
		ID:     id,
		Stage:  "emailCollection",
		Status: "completed",
		Data:   map[string]any{"found": 12},
	})
	if err != nil {
		t.Fatalf("UpdateStage RPC failed: %v", err)
	}
	if updated.Pipeline.Status != "in_progress" {
		t.Fatalf("expected in_progress, got %s", updated.Pipeline.Status)
	}

	if _, err := client.UpdateStage(ipc.UpdateStageRequest{ID: id, Stage: "bogus", Status: "started"}); err == nil {
		t.Fatal("expected unknown stage to fail")
	}

	completed, err := client.CompletePipeline(ipc.CompletePipelineRequest{ID: id, Summary: map[string]any{"emails": 12}})
	if err != nil {
		t.Fatalf("CompletePipeline RPC failed: %v", err)
	}
	if completed.Pipeline.Status != "completed" || completed.Pipeline.TotalDurationMs == nil {
		t.Fatalf("unexpected completed pipeline %+v", completed.Pipeline)
	}

	list, err := client.Pipelines()
	if err != nil {
		t.Fatalf("Pipelines RPC failed: %v", err)
	}
	if len(list.Pipelines) != 1 {
		t.Fatalf("expected completed run to stay listed until eviction, got %d", len(list.Pipelines))
	}

	report, err := client.Report(id)
	if err != nil {
		t.Fatalf("Report RPC failed: %v", err)
	}
	if report.Report.Summary["emails"] == nil {
		t.Fatalf("expected summary in report, got %+v", report.Report.Summary)
	}

	logs, err := client.Logs(ipc.LogsRequest{PipelineID: id})
	if err != nil {
		t.Fatalf("Logs RPC failed: %v", err)
	}
	if len(logs.Records) < 3 {
		t.Fatalf("expected pipeline records, got %+v", logs.Records)
	}
	follow, err := client.Logs(ipc.LogsRequest{Since: logs.Next})
	if err != nil {
		t.Fatalf("Logs follow RPC failed: %v", err)
	}
	if len(follow.Records) != 0 || follow.Next != logs.Next {
		t.Fatalf("expected empty follow page, got %+v", follow)
	}

	if _, err := client.Pipeline("missing"); !ipc.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, err := client.Report("missing"); !ipc.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}

	watch, err := client.StopWatching()
	if err != nil {
		t.Fatalf("StopWatching RPC failed: %v", err)
	}
	if watch.Watcher.IsWatching {
		t.Fatal("expected watcher stopped")
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatalf("expected Stop to report stopped, got: %#v", stopResp)
	}
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("expected shutdown to be requested")
	}
}

func TestIPCHistory(t *testing.T) {
	_, client := startServer(t, testsupport.WithJournal())

	if _, err := client.StartPipeline(ipc.StartPipelineRequest{ID: "hist-1"}); err != nil {
		t.Fatalf("StartPipeline RPC failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := client.History(ipc.HistoryRequest{PipelineID: "hist-1"})
		if err != nil {
			t.Fatalf("History RPC failed: %v", err)
		}
		if resp.Source != "journal" {
			t.Fatalf("expected journal source, got %s", resp.Source)
		}
		if len(resp.Records) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("journal never received the record: %+v", resp)
		}
		time.Sleep(20 * time.Millisecond)
	}

	runs, err := client.History(ipc.HistoryRequest{ListPipelines: true})
	if err != nil {
		t.Fatalf("History list RPC failed: %v", err)
	}
	if len(runs.Pipelines) != 1 || runs.Pipelines[0].ID != "hist-1" {
		t.Fatalf("unexpected pipelines %+v", runs.Pipelines)
	}
}

func TestIPCTestNotify(t *testing.T) {
	var mu sync.Mutex
	var titles []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	_, client := startServer(t, testsupport.WithNotifications(server.URL+"/pipewatch"))

	resp, err := client.TestNotify()
	if err != nil {
		t.Fatalf("TestNotify RPC failed: %v", err)
	}
	if !resp.Sent {
		t.Fatalf("expected notification to be sent, got %+v", resp)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(titles) != 1 || titles[0] != "Pipewatch - Test" {
		t.Fatalf("unexpected titles: %v", titles)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	found := false
	for _, sink := range status.Sinks {
		if sink.Name == "notifications" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected notifications sink in status: %+v", status.Sinks)
	}
}

func TestServerCloseDropsIdleClients(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutAPI())
	logger := logging.NewNop()
	d, err := daemon.New(cfg, logger, daemon.Options{})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer d.Close()

	srv, err := ipc.NewServer(context.Background(), cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	defer client.Close()
	if _, err := client.Status(); err != nil {
		t.Fatalf("Status: %v", err)
	}

	done := make(chan struct{})
	go func() {
		srv.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Close blocked on an idle client")
	}
	if _, err := client.Status(); err == nil {
		t.Fatal("expected RPC on a dropped connection to fail")
	}
	if _, err := ipc.Dial(cfg.SocketPath()); err == nil {
		t.Fatal("expected socket to be removed")
	}
}
