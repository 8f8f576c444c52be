package eventlog

import (
	"fmt"
	"strings"
	"time"
)

// SystemPipelineID tags records that are not tied to a pipeline run.
const SystemPipelineID = "system"

// DefaultCapacity bounds the in-memory buffer when no capacity is configured.
const DefaultCapacity = 1000

// PipelineIDKey is the data key that associates a record with a pipeline run.
const PipelineIDKey = "pipelineId"

// Record is a single immutable tracker event.
type Record struct {
	Sequence   uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Component  string         `json:"component"`
	Event      string         `json:"event"`
	Data       map[string]any `json:"data"`
	PipelineID string         `json:"pipelineId"`
}

// Filter selects records for queries. Zero values match everything; Limit <= 0
// is unlimited and keeps the most recent matches.
type Filter struct {
	Component  string
	PipelineID string
	Since      uint64
	Limit      int
}

func (f Filter) matches(r Record) bool {
	if r.Sequence <= f.Since {
		return false
	}
	if f.Component != "" && r.Component != f.Component {
		return false
	}
	if f.PipelineID != "" && r.PipelineID != f.PipelineID {
		return false
	}
	return true
}

func pipelineIDFrom(data map[string]any) string {
	value, ok := data[PipelineIDKey]
	if !ok || value == nil {
		return SystemPipelineID
	}
	id := strings.TrimSpace(fmt.Sprint(value))
	if id == "" {
		return SystemPipelineID
	}
	return id
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
