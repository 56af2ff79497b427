// Package logging configures the process-wide standard logger.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rzpsarthak13/tablesync/internal/config"
)

// Setup points the standard logger at stderr, a rotating file, or nowhere.
// The returned closer flushes and closes the log file, if any.
func Setup(cfg config.LoggingConfig) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if cfg.Quiet {
		log.SetOutput(io.Discard)
		return nopCloser{}
	}

	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	log.SetOutput(rotating)
	log.Printf("[LOGGING] Writing logs to %s (max %d MB, %d backups)", cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
	return rotating
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
