package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorWhite  = "\033[37m"
)

type LogType string

const (
	TypeWorkflow LogType = "WF"
	TypeDB       LogType = "DB"
	TypeHTTP     LogType = "HTTP"
	TypeSystem   LogType = "SYS"
	TypeError    LogType = "ERR"
)

// CustomHandler renders one colored line per record:
// [name] [hh:mm:ss] [LEVEL] [TYPE] message key=value...
type CustomHandler struct {
	name   string
	level  slog.Leveler
	mu     *sync.Mutex
	w      io.Writer
	attrs  []slog.Attr
	groups []string
	color  bool
}

func NewHandler(name string, level slog.Leveler, w io.Writer) *CustomHandler {
	return &CustomHandler{
		name:  name,
		level: level,
		mu:    &sync.Mutex{},
		w:     w,
		color: true,
	}
}

// WithoutColor disables ANSI escapes, for files and tests.
func (h *CustomHandler) WithoutColor() *CustomHandler {
	c := *h
	c.color = false
	return &c
}

func (h *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		a.Key = h.qualify(a.Key)
		c.attrs = append(c.attrs, a)
	}
	return &c
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.groups = append(append([]string(nil), h.groups...), name)
	return &c
}

func (h *CustomHandler) Handle(_ context.Context, r slog.Record) error {
	var levelColor, levelText string
	switch {
	case r.Level >= slog.LevelError:
		levelColor, levelText = colorRed, "ERROR"
	case r.Level >= slog.LevelWarn:
		levelColor, levelText = colorYellow, "WARN"
	case r.Level >= slog.LevelInfo:
		levelColor, levelText = colorGreen, "INFO"
	default:
		levelColor, levelText = colorPurple, "DEBUG"
	}

	logType := TypeSystem
	var errorDetails string
	var sb strings.Builder

	write := func(a slog.Attr, key string) {
		switch a.Key {
		case "type":
			logType = typeOf(a.Value.String())
			return
		case "error":
			errorDetails = a.Value.String()
			return
		}
		fmt.Fprintf(&sb, " %s=%v", key, a.Value)
	}
	for _, a := range h.attrs {
		write(a, a.Key)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a, h.qualify(a.Key))
		return true
	})

	message := r.Message
	if r.Level >= slog.LevelError {
		if loc := sourceLocation(r.PC); loc != "" {
			message = fmt.Sprintf("%s (%s)", message, loc)
		}
		if errorDetails != "" {
			message = fmt.Sprintf("%s: %s", message, errorDetails)
		}
	} else if errorDetails != "" {
		fmt.Fprintf(&sb, " error=%s", errorDetails)
	}

	timestamp := r.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	reset, white := colorReset, colorWhite
	if !h.color {
		levelColor, reset, white = "", "", ""
	}

	line := fmt.Sprintf("%s[%s] [%s] [%s%s%s] [%s] %s%s%s\n",
		white,
		h.name,
		timestamp.Format("15:04:05"),
		levelColor,
		levelText,
		white,
		logType,
		message,
		sb.String(),
		reset,
	)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line)
	return err
}

func (h *CustomHandler) qualify(key string) string {
	if len(h.groups) == 0 {
		return key
	}
	return strings.Join(h.groups, ".") + "." + key
}

func typeOf(v string) LogType {
	switch v {
	case "wf":
		return TypeWorkflow
	case "db":
		return TypeDB
	case "http":
		return TypeHTTP
	case "error":
		return TypeError
	default:
		return TypeSystem
	}
}

func sourceLocation(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	frame, _ := frames.Next()
	if frame.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
}

// ParseLevel maps a config string to a slog level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs the default logger. format is "text" or "json".
func Setup(name, level, format string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = NewHandler(name, lvl, w)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}
