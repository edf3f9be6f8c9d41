package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logger.go builds named zerolog loggers. Console output goes to stderr so it
// never interleaves with the progress line on stdout.

var (
	logPath   string
	logLevel            = "info"
	console   io.Writer = os.Stderr
	loggerMap           = make(map[string]zerolog.Logger)
	mu        sync.RWMutex
)

// SetLogPath sets the directory for log files
func SetLogPath(path string) {
	mu.Lock()
	logPath = path
	loggerMap = make(map[string]zerolog.Logger)
	mu.Unlock()
}

// SetLogLevel sets the global log level
func SetLogLevel(level string) {
	mu.Lock()
	logLevel = strings.ToLower(level)
	loggerMap = make(map[string]zerolog.Logger)
	mu.Unlock()
}

// SetConsole redirects console output, mostly for tests
func SetConsole(w io.Writer) {
	mu.Lock()
	console = w
	loggerMap = make(map[string]zerolog.Logger)
	mu.Unlock()
}

// GetLogPath returns the full path to the log file
func GetLogPath() string {
	mu.RLock()
	dir := logPath
	mu.RUnlock()
	return logFile(dir)
}

func logFile(dir string) string {
	if dir == "" {
		dir = "."
	}
	logsDir := filepath.Join(dir, "logs")

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logs directory: %v\n", err)
		return filepath.Join(os.TempDir(), "spinbar.log")
	}

	return filepath.Join(logsDir, "spinbar.log")
}

// ParseLevel maps a level name to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a new logger with the given component name
func New(name string) zerolog.Logger {
	mu.RLock()
	if existing, ok := loggerMap[name]; ok {
		mu.RUnlock()
		return existing
	}
	dir, level, out := logPath, logLevel, console
	mu.RUnlock()

	rotatingLogFile := &lumberjack.Logger{
		Filename: logFile(dir),
		MaxSize:  10,
		MaxAge:   15,
		Compress: true,
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
		FormatLevel: func(i interface{}) string {
			level := strings.ToUpper(fmt.Sprintf("%s", i))
			switch level {
			case "TRACE":
				return "[TRC]"
			case "DEBUG":
				return "[DBG]"
			case "INFO":
				return "[INF]"
			case "WARN":
				return "[WRN]"
			case "ERROR":
				return "[ERR]"
			case "FATAL":
				return "[FTL]"
			default:
				if len(level) > 3 {
					level = level[:3]
				}
				return fmt.Sprintf("[%s]", level)
			}
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("%v", i)
		},
	}

	fileWriter := zerolog.ConsoleWriter{
		Out:        rotatingLogFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("%v", i)
		},
	}

	multi := zerolog.MultiLevelWriter(consoleWriter, fileWriter)

	logger := zerolog.New(multi).
		With().
		Timestamp().
		Str("component", name).
		Logger().
		Level(ParseLevel(level))

	mu.Lock()
	loggerMap[name] = logger
	mu.Unlock()

	return logger
}

// Default returns the default logger
func Default() zerolog.Logger {
	return New("spinbar")
}
