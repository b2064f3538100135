package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// FileOptions configures rotated file output. An empty Filename keeps the
// logger on stdout/stderr only.
type FileOptions struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Logger struct {
	level       Level
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	debugLogger *log.Logger
	closer      io.Closer
}

func New(level string) *Logger {
	return newLogger(level, os.Stdout, os.Stderr)
}

// NewWithFile writes every level to stdout/stderr and to a rotated file.
func NewWithFile(level string, opts FileOptions) *Logger {
	if opts.Filename == "" {
		return New(level)
	}

	w := &lumberjack.Logger{
		Filename:   opts.Filename,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	l := newLogger(level, io.MultiWriter(os.Stdout, w), io.MultiWriter(os.Stderr, w))
	l.closer = w
	return l
}

// NewWithWriter sends all output to w. Used by tests and embedding callers.
func NewWithWriter(level string, w io.Writer) *Logger {
	return newLogger(level, w, w)
}

func newLogger(level string, out, errOut io.Writer) *Logger {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	l := &Logger{
		infoLogger:  log.New(out, "[INFO] ", flags),
		warnLogger:  log.New(errOut, "[WARN] ", flags),
		errorLogger: log.New(errOut, "[ERROR] ", flags),
		debugLogger: log.New(out, "[DEBUG] ", flags),
	}

	switch strings.ToLower(level) {
	case "debug":
		l.level = DEBUG
	case "warn":
		l.level = WARN
	case "error":
		l.level = ERROR
	default:
		l.level = INFO
	}

	return l
}

func (l *Logger) log(level Level, logger *log.Logger, format string, v ...interface{}) {
	if level >= l.level {
		logger.Output(3, fmt.Sprintf(format, v...))
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	if l == nil {
		return
	}
	l.log(INFO, l.infoLogger, format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	if l == nil {
		return
	}
	l.log(WARN, l.warnLogger, format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	if l == nil {
		return
	}
	l.log(ERROR, l.errorLogger, format, v...)
}

func (l *Logger) Debug(format string, v ...interface{}) {
	if l == nil {
		return
	}
	l.log(DEBUG, l.debugLogger, format, v...)
}

// Close flushes and closes the rotated log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
