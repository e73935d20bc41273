package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string
	Console bool
	// SampleN keeps one of every N events; 0 logs everything.
	SampleN uint32
	Service string
	Version string
	// Command is the CLI subcommand; per-call components come from the context.
	Command string
}

// Fields are the correlation values carried through a request or an export run.
type Fields struct {
	RequestID string
	ExportID  string
	Layer     string
	Zone      string
	Component string
}

type fieldsKey struct{}

// FieldsFrom returns the fields attached to ctx, zero when none.
func FieldsFrom(ctx context.Context) Fields {
	f, _ := ctx.Value(fieldsKey{}).(Fields)
	return f
}

func with(ctx context.Context, set func(*Fields)) context.Context {
	f := FieldsFrom(ctx)
	set(&f)
	return context.WithValue(ctx, fieldsKey{}, f)
}

func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		reqID = NewID()
	}
	return with(ctx, func(f *Fields) { f.RequestID = reqID })
}

// WithExport scopes log lines to one export session. A new export clears the layer and zone.
func WithExport(ctx context.Context, exportID string) context.Context {
	if exportID == "" {
		return ctx
	}
	return with(ctx, func(f *Fields) {
		f.ExportID = exportID
		f.Layer = ""
		f.Zone = ""
	})
}

func WithLayer(ctx context.Context, layer string) context.Context {
	if layer == "" {
		return ctx
	}
	return with(ctx, func(f *Fields) { f.Layer = layer })
}

// WithZone tags log lines emitted while a single DGGS zone is being fetched.
func WithZone(ctx context.Context, zoneID string) context.Context {
	if zoneID == "" {
		return ctx
	}
	return with(ctx, func(f *Fields) { f.Zone = zoneID })
}

func WithComponent(ctx context.Context, component string) context.Context {
	if component == "" {
		return ctx
	}
	return with(ctx, func(f *Fields) { f.Component = component })
}

func NewID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Build configures zerolog globally and returns the root logger. Logs go to stderr by default
// so command output on stdout stays machine readable.
func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	base := zerolog.New(out)
	if cfg.SampleN > 1 {
		base = base.Sample(&zerolog.BasicSampler{N: cfg.SampleN})
	}

	zc := base.With().Timestamp()
	for _, kv := range [...][2]string{
		{"service", cfg.Service},
		{"version", cfg.Version},
		{"command", cfg.Command},
	} {
		if kv[1] != "" {
			zc = zc.Str(kv[0], kv[1])
		}
	}
	return zc.Logger()
}

// parseLevel accepts zerolog names plus "warning"; anything else means info.
func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// FromContext returns a child of parent carrying the context fields.
func FromContext(ctx context.Context, parent *zerolog.Logger) *zerolog.Logger {
	base := zerolog.Nop()
	if parent != nil {
		base = *parent
	}
	f := FieldsFrom(ctx)
	w := base.With()
	for _, kv := range [...][2]string{
		{"request_id", f.RequestID},
		{"export_id", f.ExportID},
		{"layer", f.Layer},
		{"dggs_zone", f.Zone},
		{"component", f.Component},
	} {
		if kv[1] != "" {
			w = w.Str(kv[0], kv[1])
		}
	}
	l := w.Logger()
	return &l
}
