package common

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	arborcommon "github.com/ternarybob/arbor/common"
	"github.com/ternarybob/arbor/models"
)

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

// GetLogger returns the global logger. Before SetupLogger has run it
// falls back to a plain console logger so early startup paths always
// have somewhere to write.
func GetLogger() arbor.ILogger {
	loggerMutex.RLock()
	if globalLogger != nil {
		loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(writerConfig(nil, models.LogWriterTypeConsole, ""))
		globalLogger.Warn().Msg("using fallback logger - SetupLogger should be called during startup")
	}
	return globalLogger
}

// InitLogger stores logger as the global singleton.
func InitLogger(logger arbor.ILogger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	globalLogger = logger
}

// SetupLogger builds the process logger from config: console and/or
// rolling-file writers per config.Logging.Output (file logs land in a
// logs/ directory beside the executable), plus a memory writer so
// recent entries are queryable in-process. The result is installed as
// the global singleton and returned.
func SetupLogger(config *Config) arbor.ILogger {
	logger := arbor.NewLogger()

	var wantFile, wantConsole bool
	for _, output := range config.Logging.Output {
		switch output {
		case "file":
			wantFile = true
		case "stdout", "console":
			wantConsole = true
		}
	}

	execPath, err := os.Executable()
	if err != nil {
		logger = logger.WithConsoleWriter(writerConfig(config, models.LogWriterTypeConsole, ""))
		logger.Warn().Err(err).Msg("failed to resolve executable path - console logging only")
		wantFile, wantConsole = false, true
	}

	if wantFile {
		logsDir := filepath.Join(filepath.Dir(execPath), "logs")
		if mkErr := os.MkdirAll(logsDir, 0755); mkErr != nil {
			tmp := logger.WithConsoleWriter(writerConfig(config, models.LogWriterTypeConsole, ""))
			tmp.Warn().Err(mkErr).Str("logs_dir", logsDir).Msg("failed to create logs directory")
			wantFile = false
		} else {
			logFile := filepath.Join(logsDir, "meridian.log")
			logger = logger.WithFileWriter(writerConfig(config, models.LogWriterTypeFile, logFile))
		}
	}
	if wantConsole || !wantFile {
		logger = logger.WithConsoleWriter(writerConfig(config, models.LogWriterTypeConsole, ""))
	}

	logger = logger.WithMemoryWriter(writerConfig(config, models.LogWriterTypeMemory, ""))
	logger = logger.WithLevelFromString(config.Logging.Level)

	InitLogger(logger)
	return logger
}

func writerConfig(config *Config, writerType models.LogWriterType, filename string) models.WriterConfiguration {
	timeFormat := "15:04:05.000"
	if config != nil && config.Logging.TimeFormat != "" {
		timeFormat = config.Logging.TimeFormat
	}
	return models.WriterConfiguration{
		Type:       writerType,
		FileName:   filename,
		TimeFormat: timeFormat,
		MaxSize:    100 * 1024 * 1024,
		MaxBackups: 3,
	}
}

// Stop flushes any buffered log output before shutdown. Idempotent.
func Stop() {
	arborcommon.Stop()
}
