package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Logger struct {
	logger     *log.Logger
	mu         sync.Mutex
	formatFunc FormatFunc
	output     io.Writer
	debug      bool
}

type LEVEL string

const (
	Info    LEVEL = "Info"
	Warning LEVEL = "Warning"
	Debug   LEVEL = "Debug"
	Error   LEVEL = "Error"
	Fatal   LEVEL = "Fatal"
)

type FormatFunc func(level LEVEL, tag string, str string) string

// NewLogger returns a logger writing to w. A nil writer means os.Stdout and a
// nil format func means DefaultFormatFunc.
func NewLogger(w io.Writer, f FormatFunc) *Logger {
	if w == nil {
		w = os.Stdout
	}
	if f == nil {
		f = DefaultFormatFunc
	}
	return &Logger{
		formatFunc: f,
		output:     w,
		logger:     log.New(w, "", 0),
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewLogger(io.Discard, nil)
}

func (l *Logger) SetOutput(w io.Writer) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
	l.logger = log.New(w, "", 0)
	return l
}

func (l *Logger) SetFormatFunc(f FormatFunc) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.formatFunc = f
	return l
}

func (l *Logger) SetDebug(debug bool) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = debug
	return l
}

func DefaultFormatFunc(level LEVEL, tag string, str string) string {
	return fmt.Sprintf("[%s] [%s] [%s] %s", time.Now().Format("2006-01-02 15:04:05 UTC-07"), level, tag, str)
}

func (l *Logger) print(level LEVEL, tag string, str string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level == Debug && !l.debug {
		return
	}
	str = strings.TrimRight(str, "\n")
	if l.formatFunc != nil {
		l.logger.Print(l.formatFunc(level, tag, str))
	} else {
		l.logger.Print(str)
	}
}

func (l *Logger) Debug(tag string, str string) {
	l.print(Debug, tag, str)
}

func (l *Logger) Info(tag string, str string) {
	l.print(Info, tag, str)
}

func (l *Logger) Warn(tag string, str string) {
	l.print(Warning, tag, str)
}

func (l *Logger) Error(tag string, str string) {
	l.print(Error, tag, str)
}

// Fatal logs and exits the process with status 1.
func (l *Logger) Fatal(tag string, str string) {
	l.print(Fatal, tag, str)
	os.Exit(1)
}
