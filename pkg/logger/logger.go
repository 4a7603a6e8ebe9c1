package logger

import (
	"io"
	"log"
	"os"
	"strings"
)

type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

var (
	Trace *log.Logger
	Debug *log.Logger
	Info  *log.Logger
	Warn  *log.Logger
	Error *log.Logger

	currentLevel LogLevel
)

func init() {
	Trace = log.New(os.Stdout, "[TRACE] ", log.Ldate|log.Ltime)
	Debug = log.New(os.Stdout, "[DEBUG] ", log.Ldate|log.Ltime)
	Info = log.New(os.Stdout, "[INFO] ", log.Ldate|log.Ltime)
	Warn = log.New(os.Stdout, "[WARN] ", log.Ldate|log.Ltime)
	Error = log.New(os.Stderr, "[ERROR] ", log.Ldate|log.Ltime)

	SetLevel(ParseLevel(os.Getenv("IMPOSTER_LOG_LEVEL")))
}

// ParseLevel converts a level name to a LogLevel, defaulting to DEBUG
func ParseLevel(lvl string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(lvl)) {
	case "TRACE":
		return TRACE
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return DEBUG
	}
}

// SetLevel changes the active level and silences the loggers below it
func SetLevel(level LogLevel) {
	currentLevel = level
	for lvl, l := range map[LogLevel]*log.Logger{TRACE: Trace, DEBUG: Debug, INFO: Info, WARN: Warn} {
		if lvl >= level {
			l.SetOutput(os.Stdout)
		} else {
			l.SetOutput(io.Discard)
		}
	}
	if ERROR >= level {
		Error.SetOutput(os.Stderr)
	}
}

// SetOutput redirects every level to w, used by tests to capture log lines
func SetOutput(w io.Writer) {
	for lvl, l := range map[LogLevel]*log.Logger{TRACE: Trace, DEBUG: Debug, INFO: Info, WARN: Warn, ERROR: Error} {
		if lvl >= currentLevel {
			l.SetOutput(w)
		}
	}
}

func IsTraceEnabled() bool {
	return currentLevel <= TRACE
}

func IsDebugEnabled() bool {
	return currentLevel <= DEBUG
}

func IsInfoEnabled() bool {
	return currentLevel <= INFO
}

func IsWarnEnabled() bool {
	return currentLevel <= WARN
}

func IsErrorEnabled() bool {
	return currentLevel <= ERROR
}

func Tracef(format string, v ...interface{}) {
	if IsTraceEnabled() {
		Trace.Printf(format, v...)
	}
}

func Traceln(msg string) {
	if IsTraceEnabled() {
		Trace.Println(msg)
	}
}

func Debugf(format string, v ...interface{}) {
	if IsDebugEnabled() {
		Debug.Printf(format, v...)
	}
}

func Debugln(msg string) {
	if IsDebugEnabled() {
		Debug.Println(msg)
	}
}

func Infof(format string, v ...interface{}) {
	if IsInfoEnabled() {
		Info.Printf(format, v...)
	}
}

func Infoln(msg string) {
	if IsInfoEnabled() {
		Info.Println(msg)
	}
}

func Warnf(format string, v ...interface{}) {
	if IsWarnEnabled() {
		Warn.Printf(format, v...)
	}
}

func Warnln(msg string) {
	if IsWarnEnabled() {
		Warn.Println(msg)
	}
}

func Errorf(format string, v ...interface{}) {
	if IsErrorEnabled() {
		Error.Printf(format, v...)
	}
}

func Errorln(msg string) {
	if IsErrorEnabled() {
		Error.Println(msg)
	}
}

// GetCurrentLevel returns the current log level
func GetCurrentLevel() LogLevel {
	return currentLevel
}
