package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	consoleTimestampLayout = "2006-01-02 15:04:05"
	consoleFieldLimit      = 8
)

// prettyHandler renders one header line per record followed by indented
// "- key: value" fields. Component, pipeline id and stage are lifted into
// the header.
type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}

	fields := make([]field, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		fields = appendField(fields, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.groups, attr)
		return true
	})

	line := consoleLine{level: record.Level, message: strings.TrimSpace(record.Message), when: record.Time}
	fields = line.lift(fields)
	if h.addSource {
		if src := record.Source(); src != nil {
			line.source = filepath.Base(src.File) + ":" + strconv.Itoa(src.Line)
		}
	}

	limit := consoleFieldLimit
	if record.Level < slog.LevelInfo {
		limit = len(fields)
	}
	var b strings.Builder
	line.writeHeader(&b)
	for i, f := range fields {
		if i == limit {
			fmt.Fprintf(&b, "    + %d more\n", len(fields)-limit)
			break
		}
		fmt.Fprintf(&b, "    - %s: %s\n", f.key, formatValue(f.value))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	next.attrs = append(next.attrs, attrs...)
	return next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	next := h.clone()
	next.groups = append(next.groups, name)
	return next
}

func (h *prettyHandler) clone() *prettyHandler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	next.groups = append([]string(nil), h.groups...)
	return &next
}

type consoleLine struct {
	when       time.Time
	level      slog.Level
	component  string
	pipelineID string
	stage      string
	message    string
	source     string
}

// lift moves the first component, pipeline id and stage fields into the
// header and returns the rest.
func (l *consoleLine) lift(fields []field) []field {
	rest := fields[:0]
	for _, f := range fields {
		var slot *string
		switch f.key {
		case FieldComponent:
			slot = &l.component
		case FieldPipelineID:
			slot = &l.pipelineID
		case FieldStage:
			slot = &l.stage
		default:
			rest = append(rest, f)
			continue
		}
		if *slot == "" {
			*slot = valueText(f.value)
		}
	}
	return rest
}

func (l consoleLine) writeHeader(b *strings.Builder) {
	when := l.when
	if when.IsZero() {
		when = time.Now()
	}
	b.WriteString(when.In(time.Local).Format(consoleTimestampLayout))
	b.WriteByte(' ')
	b.WriteString(levelLabel(l.level))
	b.WriteByte(' ')
	if l.component != "" {
		b.WriteString(l.component + ": ")
	}
	if subject := FormatSubject(l.pipelineID, l.stage); subject != "" {
		b.WriteString(subject + " · ")
	}
	if l.message == "" {
		b.WriteString("(no message)")
	} else {
		b.WriteString(l.message)
	}
	if l.source != "" {
		b.WriteString(" [" + l.source + "]")
	}
	b.WriteByte('\n')
}

// FormatSubject renders "Run <id> (<stage>)", dropping whichever part is empty.
func FormatSubject(pipelineID, stage string) string {
	pipelineID = strings.TrimSpace(pipelineID)
	stage = strings.TrimSpace(stage)
	switch {
	case pipelineID == "":
		return stage
	case stage == "":
		return "Run " + pipelineID
	}
	return "Run " + pipelineID + " (" + stage + ")"
}

type field struct {
	key   string
	value slog.Value
}

// appendField flattens groups into dotted keys.
func appendField(dst []field, prefix []string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix = append(append([]string(nil), prefix...), attr.Key)
		}
		for _, child := range value.Group() {
			dst = appendField(dst, prefix, child)
		}
		return dst
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".") + "." + key
	}
	return append(dst, field{key: key, value: value})
}

// valueText renders v without quoting.
func valueText(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().In(time.Local).Format(consoleTimestampLayout)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	return v.String()
}

// formatValue is valueText quoted when empty or containing control
// characters or double quotes.
func formatValue(v slog.Value) string {
	s := valueText(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r < ' ' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	}
	return "DEBUG"
}
