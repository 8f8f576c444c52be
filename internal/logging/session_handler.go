package logging

import "log/slog"

// FieldSessionID is the standardized structured logging key for daemon session identifiers.
const FieldSessionID = "session_id"

// withSessionID stamps every record from base with the daemon session.
func withSessionID(base slog.Handler, sessionID string) slog.Handler {
	if base == nil {
		return noopHandler{}
	}
	return base.WithAttrs([]slog.Attr{slog.String(FieldSessionID, sessionID)})
}
