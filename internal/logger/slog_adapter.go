package logger

import (
	"context"
	"log/slog"
	"strings"
)

// NewSlogHandler routes log/slog records into l, for libraries that only
// accept a *slog.Logger. Returns nil for a nil logger.
func NewSlogHandler(l *Logger) slog.Handler {
	if l == nil {
		return nil
	}
	return &slogHandler{log: l}
}

type slogHandler struct {
	log   *Logger
	group string
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.log.Enabled(fromSlogLevel(level))
}

func (h *slogHandler) Handle(_ context.Context, record slog.Record) error {
	kv := make([]interface{}, 0, record.NumAttrs()*2)
	record.Attrs(func(attr slog.Attr) bool {
		kv = appendAttr(kv, h.group, attr)
		return true
	})

	target := h.log
	if len(kv) > 0 {
		target = target.With(kv...)
	}
	target.log(fromSlogLevel(record.Level), "%s", record.Message)
	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	kv := make([]interface{}, 0, len(attrs)*2)
	for _, attr := range attrs {
		kv = appendAttr(kv, h.group, attr)
	}
	return &slogHandler{log: h.log.With(kv...), group: h.group}
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &slogHandler{log: h.log, group: qualify(h.group, name)}
}

func appendAttr(kv []interface{}, group string, attr slog.Attr) []interface{} {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return kv
	}
	if attr.Value.Kind() == slog.KindGroup {
		nested := qualify(group, attr.Key)
		for _, a := range attr.Value.Group() {
			kv = appendAttr(kv, nested, a)
		}
		return kv
	}
	key := attr.Key
	if key == "" {
		key = "attr"
	}
	return append(kv, qualify(group, key), attr.Value.String())
}

func qualify(group, key string) string {
	if group == "" {
		return key
	}
	return strings.TrimSuffix(group, ".") + "." + key
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level >= slog.LevelError:
		return LevelError
	case level >= slog.LevelWarn:
		return LevelWarn
	case level >= slog.LevelInfo:
		return LevelInfo
	default:
		return LevelDebug
	}
}
