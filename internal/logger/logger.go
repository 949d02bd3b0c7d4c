package logger

import (
	"facestream/internal/config"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Level selects the most verbose entries a Logger writes.
type Level int

const (
	LevelTrace Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// ParseLevel maps a LOG_LEVEL value to a Level, defaulting to info.
func ParseLevel(value string) Level {
	switch value {
	case "trace":
		return LevelTrace
	case "warning", "warn":
		return LevelWarning
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides leveled logging (trace/info/warning/error) to files and stdout/stderr.
type Logger struct {
	traceLog   *log.Logger
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	level      Level
	logDir     string
	mu         sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) *Logger {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	logger := &Logger{
		logDir: config.LogDirectory,
		level:  ParseLevel(config.LogLevel),
	}

	logger.setupLoggers()
	return logger
}

// New creates a Logger that writes only to the given writers. It keeps no files.
func New(out, errOut io.Writer, level Level) *Logger {
	l := &Logger{level: level}
	l.traceLog = log.New(out, "TRACE   ", log.Ldate|log.Ltime|log.Lmicroseconds)
	l.infoLog = log.New(out, "INFO    ", log.Ldate|log.Ltime|log.Lmicroseconds)
	l.warningLog = log.New(out, "WARNING ", log.Ldate|log.Ltime|log.Lmicroseconds)
	l.errorLog = log.New(errOut, "ERROR   ", log.Ldate|log.Ltime|log.Lmicroseconds)
	return l
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, io.Discard, LevelError+1)
}

// setupLoggers initializes writers and per-level loggers.
func (l *Logger) setupLoggers() {
	traceFile := filepath.Join(l.logDir, "trace.log")
	infoFile := filepath.Join(l.logDir, "info.log")
	warningFile := filepath.Join(l.logDir, "warning.log")
	errorFile := filepath.Join(l.logDir, "error.log")

	traceFileHandle := l.openLogFile(traceFile)
	infoFileHandle := l.openLogFile(infoFile)
	warningFileHandle := l.openLogFile(warningFile)
	errorFileHandle := l.openLogFile(errorFile)

	infoWriter := io.MultiWriter(os.Stdout, infoFileHandle)
	warningWriter := io.MultiWriter(os.Stdout, warningFileHandle)
	errorWriter := io.MultiWriter(os.Stderr, errorFileHandle)

	// Trace is chatty (one entry per skipped frame), so it only goes to its file.
	l.traceLog = log.New(traceFileHandle, "🔎 TRACE   ", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	l.infoLog = log.New(infoWriter, "ℹ️  INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(warningWriter, "⚠️  WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(errorWriter, "❌ ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) *os.File {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file %s: %v", filename, err)
	}
	return file
}

// Dir returns the directory holding the log files, empty for writer-only loggers.
func (l *Logger) Dir() string {
	return l.logDir
}

// Trace writes a formatted trace-level log entry.
func (l *Logger) Trace(format string, v ...interface{}) {
	if l.level > LevelTrace {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.traceLog.Printf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	if l.level > LevelInfo {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Printf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	if l.level > LevelWarning {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Printf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	if l.level > LevelError {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Printf(format, v...)
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, fileName)
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		l.Error("Error opening file: %v", err)
		return err
	}
	defer file.Close()

	l.Info("File %s has been cleared.", fileName)
	return nil
}
