package command

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/joeycumines/sdk-bridge/internal/config"
	"github.com/joeycumines/sdk-bridge/internal/scripting"
)

// logConfig is the resolved logging setup of a script-running command.
type logConfig struct {
	level      slog.Level
	logFile    io.WriteCloser // nil without file logging
	bufferSize int
}

// resolveLogConfig applies flags over config (which already folds in the
// environment and defaults). The caller closes logFile, if set.
func resolveLogConfig(flagPath, flagLevel string, cfg *config.Config) (logConfig, error) {
	var lc logConfig

	levelStr := flagLevel
	if levelStr == "" {
		levelStr = cfg.String(config.KeyLogLevel)
	}
	level, ok := scripting.ParseLevel(levelStr)
	if !ok {
		return lc, fmt.Errorf("invalid log level: %s", levelStr)
	}
	lc.level = level

	lc.bufferSize = cfg.Int(config.KeyLogBufferSize)
	if lc.bufferSize <= 0 {
		lc.bufferSize = scripting.DefaultLogBufferSize
	}

	logPath := flagPath
	if logPath == "" {
		logPath = cfg.String(config.KeyLogFile)
	}
	if logPath != "" {
		maxSizeMB := cfg.Int(config.KeyLogMaxSizeMB)
		if maxSizeMB <= 0 {
			maxSizeMB = 10
		}
		// zero keeps no backups
		maxFiles := max(cfg.Int(config.KeyLogMaxFiles), 0)

		w, err := scripting.OpenRotatingFile(logPath, int64(maxSizeMB)<<20, maxFiles)
		if err != nil {
			return lc, fmt.Errorf("failed to open log file %s: %w", logPath, err)
		}
		lc.logFile = w
	}
	return lc, nil
}

// newLogs builds the ring logger, writing through to the log file when one
// is configured and to fallback otherwise.
func (lc logConfig) newLogs(fallback io.Writer) *scripting.RingLogger {
	var sink io.Writer = fallback
	if lc.logFile != nil {
		sink = lc.logFile
	}
	return scripting.NewRingLogger(lc.bufferSize, lc.level, sink)
}

func (lc logConfig) close() {
	if lc.logFile != nil {
		_ = lc.logFile.Close()
	}
}
