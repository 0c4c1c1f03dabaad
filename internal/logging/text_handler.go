package logging

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TextHandler writes one human readable line per record:
//
//	2024-01-19T10:30:00Z [INFO] [listener] Listener started workers=8
//
// The "component" attribute, when set through WithAttrs, is printed as a
// bracketed tag instead of a key=value pair.
type TextHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	component string
	prefix    string // pre-rendered handler attributes
	groups    []string
}

// NewTextHandler creates a new text handler.
func NewTextHandler(w io.Writer, opts *slog.HandlerOptions) *TextHandler {
	h := &TextHandler{mu: &sync.Mutex{}, w: w, level: slog.LevelInfo}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

func (h *TextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *TextHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	if !r.Time.IsZero() {
		sb.WriteString(r.Time.UTC().Format(time.RFC3339))
		sb.WriteByte(' ')
	}
	sb.WriteByte('[')
	sb.WriteString(r.Level.String())
	sb.WriteString("] ")
	if h.component != "" {
		sb.WriteByte('[')
		sb.WriteString(h.component)
		sb.WriteString("] ")
	}
	sb.WriteString(r.Message)
	sb.WriteString(h.prefix)

	group := strings.Join(h.groups, ".")
	r.Attrs(func(attr slog.Attr) bool {
		appendAttr(&sb, group, attr)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := h.clone()
	var sb strings.Builder
	sb.WriteString(h.prefix)
	group := strings.Join(h.groups, ".")
	for _, attr := range attrs {
		if attr.Key == "component" && group == "" {
			h2.component = attr.Value.Resolve().String()
			continue
		}
		appendAttr(&sb, group, attr)
	}
	h2.prefix = sb.String()
	return h2
}

func (h *TextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.groups = append(h2.groups, name)
	return h2
}

func (h *TextHandler) clone() *TextHandler {
	h2 := *h
	h2.groups = append([]string(nil), h.groups...)
	return &h2
}

func appendAttr(sb *strings.Builder, group string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	switch {
	case group != "" && key == "":
		key = group
	case group != "":
		key = group + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, a := range attr.Value.Group() {
			appendAttr(sb, key, a)
		}
		return
	}
	sb.WriteByte(' ')
	sb.WriteString(key)
	sb.WriteByte('=')
	appendValue(sb, attr.Value)
}

func appendValue(sb *strings.Builder, v slog.Value) {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \"=\n\t\\") {
			sb.WriteString(strconv.Quote(s))
		} else {
			sb.WriteString(s)
		}
	case slog.KindTime:
		sb.WriteString(v.Time().Format(time.RFC3339))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			sb.WriteString(strconv.Quote(err.Error()))
			return
		}
		appendValue(sb, slog.StringValue(v.String()))
	default:
		sb.WriteString(v.String())
	}
}
