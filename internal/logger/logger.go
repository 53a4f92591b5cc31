// Package logger configures the zerolog logger every package receives through SetLogger.
package logger

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// DefaultLevel keeps the CLI quiet unless something goes wrong.
const DefaultLevel = zerolog.WarnLevel

func New(level string) zerolog.Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter builds a console logger writing to w. An invalid level falls
// back to DefaultLevel.
func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logLevel, err := ParseLevel(level)
	if err != nil {
		// Use a basic logger to print this warning, as the main one isn't configured yet.
		fmt.Fprintf(os.Stderr, "Invalid log level '%s', defaulting to '%s'\n", level, DefaultLevel)
	}

	goVersion, gitRevision := "unknown", "unknown"
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		goVersion = buildInfo.GoVersion
		for _, v := range buildInfo.Settings {
			if v.Key == "vcs.revision" {
				gitRevision = v.Value
				break
			}
		}
	}

	ctx := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(logLevel).
		With().
		Timestamp()
	if logLevel <= zerolog.DebugLevel {
		ctx = ctx.Caller().
			Int("pid", os.Getpid()).
			Str("go_version", goVersion).
			Str("git_revision", gitRevision)
	}
	l := ctx.Logger()

	zerolog.DefaultContextLogger = &l
	return l
}

// ParseLevel accepts zerolog level names in any case. "" is DefaultLevel.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return DefaultLevel, nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return DefaultLevel, err
	}
	return l, nil
}
