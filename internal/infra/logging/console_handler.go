package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

const (
	ansiCodeReset     = "\033[0m"
	ansiCodeRed       = "\033[31m"
	ansiCodeGreen     = "\033[32m"
	ansiCodeYellow    = "\033[33m"
	ansiCodeCyan      = "\033[36m"
	ansiCodeGray      = "\033[90m"
	ansiCodeUnderline = "\033[4m"
)

//nolint:gochecknoglobals
var consoleMu sync.Mutex

//nolint:gochecknoglobals
var ansiCodeMap = map[slog.Level]string{
	slog.LevelDebug: ansiCodeCyan,
	slog.LevelInfo:  ansiCodeGreen,
	slog.LevelWarn:  ansiCodeYellow,
	slog.LevelError: ansiCodeRed,
}

// ConsoleHandler implements slog.Handler and renders colored, human-readable
// records for development.
type ConsoleHandler struct {
	// Output is the destination for log output (typically os.Stderr)
	Output io.Writer
	// Level is the minimum level for log records to be processed
	Level slog.Leveler
	// PkgLevels maps logger names (or their dotted prefixes) to minimum log levels
	PkgLevels map[string]slog.Level
	// NoColor disables ANSI escape codes
	NoColor bool

	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// NewConsoleHandler creates a ConsoleHandler writing to output.
func NewConsoleHandler(output io.Writer, level slog.Leveler, pkgLevels map[string]slog.Level) *ConsoleHandler {
	return &ConsoleHandler{
		Output:    output,
		Level:     level,
		PkgLevels: pkgLevels,
		mu:        new(sync.Mutex),
	}
}

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)

	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)

		return true
	})

	if !h.pkgEnabled(loggerName(attrs), r.Level) {
		return nil
	}

	var b strings.Builder

	b.WriteString(h.color(ansiCodeGray, r.Time.Format("15:04:05.000000")))
	b.WriteString(" " + h.color(ansiCodeMap[r.Level], "["+r.Level.String()+"]"))
	b.WriteString(" " + r.Message)

	if len(attrs) > 0 {
		var prefix string
		if len(h.groups) > 0 {
			prefix = strings.Join(h.groups, ".") + "."
		}

		b.WriteString(" " + h.color(ansiCodeGray, "|"))
		h.renderAttrs(&b, prefix, attrs)
	}

	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		fn := strings.Split(frame.Function, string(os.PathSeparator))

		b.WriteString("\n-> " + h.color(ansiCodeGray, fn[len(fn)-1]+"()"))
		b.WriteString(" in " + h.color(ansiCodeUnderline, frame.File+":"+strconv.Itoa(frame.Line)))
	}

	mu := h.mu
	if mu == nil {
		mu = &consoleMu
	}

	mu.Lock()
	defer mu.Unlock()

	_, err := fmt.Fprintln(h.Output, b.String())

	return err //nolint:wrapcheck
}

// pkgEnabled walks the dotted logger name from most to least specific and
// applies the first matching level override. The empty key is the catch-all.
func (h *ConsoleHandler) pkgEnabled(name string, level slog.Level) bool {
	if len(h.PkgLevels) == 0 {
		return true
	}

	parts := strings.Split(name, ".")

	for i := len(parts); i >= 0; i-- {
		if threshold, ok := h.PkgLevels[strings.Join(parts[:i], ".")]; ok {
			return level >= threshold
		}
	}

	return true
}

func loggerName(attrs []slog.Attr) string {
	for _, attr := range attrs {
		if attr.Key == "logger" {
			return attr.Value.String()
		}
	}

	return ""
}

func (h *ConsoleHandler) color(code, s string) string {
	if h.NoColor || code == "" {
		return s
	}

	return code + s + ansiCodeReset
}

func (h *ConsoleHandler) renderAttrs(b *strings.Builder, prefix string, attrs []slog.Attr) {
	for _, attr := range attrs {
		if attr.Value.Kind() == slog.KindGroup {
			h.renderAttrs(b, prefix+attr.Key+".", attr.Value.Group())

			continue
		}

		b.WriteString(" " + prefix + attr.Key + "=" + h.color(ansiCodeGray, attr.Value.String()))
	}
}

func (h *ConsoleHandler) clone() *ConsoleHandler {
	mu := h.mu
	if mu == nil {
		mu = &consoleMu
	}

	return &ConsoleHandler{
		Output:    h.Output,
		Level:     h.Level,
		PkgLevels: h.PkgLevels,
		NoColor:   h.NoColor,
		mu:        mu,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
	}
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) Handler {
	c := h.clone()
	c.attrs = append(c.attrs, attrs...)

	return c
}

// WithGroup implements slog.Handler.WithGroup.
func (h *ConsoleHandler) WithGroup(name string) Handler {
	c := h.clone()
	c.groups = append(c.groups, name)

	return c
}

// Enabled implements slog.Handler.Enabled.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.Level.Level() <= level
}
