package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"
	"time"

	"pipewatch/internal/pipeline"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsNotFound reports whether err is the server's unknown-run error.
func IsNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), pipeline.ErrUnknownRun.Error())
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start its services.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{})
}

// Stop requests the daemon to stop and exit.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// StartWatching puts the watcher in standby.
func (c *Client) StartWatching() (*WatchResponse, error) {
	return call[WatchResponse](c, "StartWatching", WatchRequest{})
}

// StopWatching stops the watcher.
func (c *Client) StopWatching() (*WatchResponse, error) {
	return call[WatchResponse](c, "StopWatching", WatchRequest{})
}

// Activate reports a trigger to a standby watcher.
func (c *Client) Activate(ref, label string) (*ActivateResponse, error) {
	return call[ActivateResponse](c, "Activate", ActivateRequest{TriggerRef: ref, TriggerLabel: label})
}

// StartPipeline registers a run.
func (c *Client) StartPipeline(req StartPipelineRequest) (*PipelineResponse, error) {
	return call[PipelineResponse](c, "StartPipeline", req)
}

// UpdateStage applies a stage transition and returns the updated run.
func (c *Client) UpdateStage(req UpdateStageRequest) (*PipelineResponse, error) {
	return call[PipelineResponse](c, "UpdateStage", req)
}

// CompletePipeline finalizes a run.
func (c *Client) CompletePipeline(req CompletePipelineRequest) (*PipelineResponse, error) {
	return call[PipelineResponse](c, "CompletePipeline", req)
}

// Pipelines lists live runs.
func (c *Client) Pipelines() (*PipelinesResponse, error) {
	return call[PipelinesResponse](c, "Pipelines", PipelinesRequest{})
}

// Pipeline returns one live run.
func (c *Client) Pipeline(id string) (*PipelineResponse, error) {
	return call[PipelineResponse](c, "Pipeline", PipelineRequest{ID: id})
}

// Report returns a run report.
func (c *Client) Report(id string) (*ReportResponse, error) {
	return call[ReportResponse](c, "Report", ReportRequest{ID: id})
}

// Logs returns buffered records after req.Since.
func (c *Client) Logs(req LogsRequest) (*LogsResponse, error) {
	return call[LogsResponse](c, "Logs", req)
}

// History returns durable records or journal run summaries.
func (c *Client) History(req HistoryRequest) (*HistoryResponse, error) {
	return call[HistoryResponse](c, "History", req)
}

// TestNotify sends a test notification through the daemon's notifier.
func (c *Client) TestNotify() (*TestNotifyResponse, error) {
	return call[TestNotifyResponse](c, "TestNotify", TestNotifyRequest{})
}
