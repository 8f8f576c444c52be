package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"pipewatch/internal/config"
	"pipewatch/internal/daemon"
	"pipewatch/internal/ipc"
	"pipewatch/internal/logging"
	"pipewatch/internal/preflight"
)

// CurrentLogName names the link that always points at the active session log.
const CurrentLogName = "pipewatch.log"

const sessionLogPattern = "pipewatch-*.log"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Diagnostic  bool
}

// session is one daemon process lifetime: its id, log file and logger.
type session struct {
	id      string
	logPath string
	logger  *slog.Logger
}

// Run starts the daemon and blocks until a signal arrives or the daemon stops.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(cfg, opts)
	if err != nil {
		return err
	}
	logPreflight(sess.logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	return serve(ctx, cfg, sess)
}

func openSession(cfg *config.Config, opts Options) (*session, error) {
	logDir := cfg.Paths.LogDir
	name := "pipewatch-" + time.Now().UTC().Format("20060102T150405.000Z") + ".log"
	sess := &session{id: uuid.NewString(), logPath: filepath.Join(logDir, name)}

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", sess.logPath},
		ErrorOutputPaths: []string{"stderr", sess.logPath},
		Development:      opts.Development,
		SessionID:        sess.id,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	sess.logger = logger

	debugDir := filepath.Join(logDir, "debug")
	if opts.Diagnostic {
		if err := sess.teeDebugLog(filepath.Join(debugDir, name)); err != nil {
			fmt.Fprintf(os.Stderr, "warn: diagnostic log unavailable: %v\n", err)
		}
	}
	if err := ensureCurrentLogPointer(logDir, sess.logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", CurrentLogName, err)
	}
	logging.CleanupOldLogs(sess.logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: logDir, Pattern: sessionLogPattern, Exclude: []string{sess.logPath}},
		logging.RetentionTarget{Dir: debugDir, Pattern: sessionLogPattern},
	)
	return sess, nil
}

// teeDebugLog mirrors every record at debug level into a JSON file.
func (s *session) teeDebugLog(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	handler, err := logging.NewJSONFileHandler(path, "debug")
	if err != nil {
		return err
	}
	s.logger = logging.TeeLogger(s.logger, handler)
	s.logger.Info("diagnostic mode enabled",
		logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
		logging.String("debug_log_path", path),
	)
	return nil
}

func serve(ctx context.Context, cfg *config.Config, sess *session) error {
	logger := sess.logger
	d, err := daemon.New(cfg, logger, daemon.Options{SessionID: sess.id, LogPath: sess.logPath})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer srv.Close()
	srv.Serve()

	// The IPC server stays up after a failed start so `pipewatch status` can report it.
	if err := d.Start(ctx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "another pipewatch daemon may hold the lock; run pipewatch stop"),
			logging.String(logging.FieldImpact, "pipeline events are not tracked until the daemon starts"),
		)
	}

	select {
	case <-ctx.Done():
	case <-d.Done():
	}
	logger.Info("pipewatch daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func logPreflight(logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(cfg)
	failed := preflight.Failed(results)
	for _, result := range failed {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "fix the path or bind address in the config file"),
			logging.String(logging.FieldImpact, "the affected sink or surface will be unavailable"),
		)
	}
	logger.Info("preflight snapshot",
		logging.String(logging.FieldEventType, "preflight_snapshot"),
		logging.Int("checks", len(results)),
		logging.Int("failed", len(failed)),
		logging.Bool("journal_enabled", cfg.Journal.Enabled),
		logging.String("api_bind", cfg.Paths.APIBind),
	)
}

// ensureCurrentLogPointer repoints CurrentLogName at target, falling back
// to a hard link where symlinks are unsupported.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	link := filepath.Join(logDir, CurrentLogName)
	if err := os.Remove(link); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if os.Symlink(target, link) == nil {
		return nil
	}
	if err := os.Link(target, link); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}
