package ipc

import (
	"context"
	"log/slog"

	"pipewatch/internal/api"
	"pipewatch/internal/daemon"
	"pipewatch/internal/journal"
	"pipewatch/internal/logging"
)

// service is registered under ServiceName; each exported method is one RPC.
type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	s.daemon.RequestShutdown()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.APIStatus()
	return nil
}

func (s *service) StartWatching(_ WatchRequest, resp *WatchResponse) error {
	s.daemon.Tracker().StartWatching()
	resp.Watcher = s.daemon.StatusService().WatcherStatus()
	return nil
}

func (s *service) StopWatching(_ WatchRequest, resp *WatchResponse) error {
	s.daemon.Tracker().StopWatching()
	resp.Watcher = s.daemon.StatusService().WatcherStatus()
	return nil
}

func (s *service) Activate(req ActivateRequest, resp *ActivateResponse) error {
	resp.Activated = s.daemon.Tracker().ActivateWatcher(req.TriggerRef, req.TriggerLabel)
	resp.Watcher = s.daemon.StatusService().WatcherStatus()
	return nil
}

func (s *service) StartPipeline(req StartPipelineRequest, resp *PipelineResponse) error {
	run, err := s.daemon.Tracker().StartPipelineTracking(req.ID, req.SourceRef, req.Label)
	if err != nil {
		return err
	}
	resp.Pipeline = api.FromRun(run)
	return nil
}

func (s *service) UpdateStage(req UpdateStageRequest, resp *PipelineResponse) error {
	if err := s.daemon.Tracker().UpdatePipelineStage(req.ID, req.Stage, req.Status, req.Data); err != nil {
		return err
	}
	return s.fillPipeline(req.ID, resp)
}

func (s *service) CompletePipeline(req CompletePipelineRequest, resp *PipelineResponse) error {
	if err := s.daemon.Tracker().CompletePipelineTracking(req.ID, req.Summary); err != nil {
		return err
	}
	return s.fillPipeline(req.ID, resp)
}

func (s *service) Pipelines(_ PipelinesRequest, resp *PipelinesResponse) error {
	resp.Pipelines = s.daemon.StatusService().ActivePipelines()
	return nil
}

func (s *service) Pipeline(req PipelineRequest, resp *PipelineResponse) error {
	return s.fillPipeline(req.ID, resp)
}

func (s *service) Report(req ReportRequest, resp *ReportResponse) error {
	report, err := s.daemon.StatusService().PipelineReport(req.ID)
	if err != nil {
		return err
	}
	resp.Report = report
	return nil
}

func (s *service) Logs(req LogsRequest, resp *LogsResponse) error {
	*resp = s.daemon.StatusService().Logs(req)
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	if req.ListPipelines {
		summaries, err := s.daemon.HistoryPipelines(s.ctx, req.Limit)
		if err != nil {
			return err
		}
		resp.Source = "journal"
		resp.Pipelines = api.FromJournalPipelines(summaries)
		return nil
	}
	records, source, err := s.daemon.History(s.ctx, journal.HistoryFilter{
		PipelineID: req.PipelineID,
		Component:  req.Component,
		Limit:      req.Limit,
	})
	if err != nil {
		return err
	}
	resp.Source = source
	resp.Records = api.FromRecords(records)
	return nil
}

func (s *service) TestNotify(_ TestNotifyRequest, resp *TestNotifyResponse) error {
	sent, err := s.daemon.TestNotification(s.ctx)
	switch {
	case err != nil:
		resp.Message = err.Error()
	case sent:
		resp.Sent, resp.Message = true, "test notification sent"
	default:
		resp.Message = "notifications disabled (set notifications.ntfy_topic)"
	}
	return nil
}

// fillPipeline loads a run snapshot. A run evicted between the update and
// the lookup is reported as not found.
func (s *service) fillPipeline(id string, resp *PipelineResponse) error {
	run, err := s.daemon.StatusService().PipelineStatus(id)
	if err != nil {
		return err
	}
	resp.Pipeline = run
	return nil
}
