package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// newHandler builds the JSON handler with the field names operators expect:
// timestamp, severity, and message instead of slog's defaults.
func newHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: false,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})
}

func baseAttrs(service, env string) []any {
	attrs := []any{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	return attrs
}

// Setup installs a structured JSON logger tagged with the service name and
// environment, sets it as the process default, and returns it.
func Setup(service, env string) *slog.Logger {
	logger := slog.New(newHandler(os.Stdout)).With(baseAttrs(service, env)...)
	slog.SetDefault(logger)
	return logger
}
