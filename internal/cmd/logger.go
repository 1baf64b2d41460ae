package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/golang-cz/devslog"
	"github.com/mattn/go-isatty"
)

var ErrInvalidLogLevel = errors.New("invalid log level")

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func parseLevel(level string) (slog.Level, error) {
	parsed, ok := logLevels[strings.ToLower(level)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidLogLevel, level)
	}
	return parsed, nil
}

// newLogger builds a devslog logger when w is a terminal and a JSON logger otherwise.
func newLogger(w io.Writer, level slog.Level, profile string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		handler = devslog.NewHandler(w, &devslog.Options{
			HandlerOptions:    opts,
			MaxSlicePrintSize: 8,
			SortKeys:          true,
		})
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("profile", profile)
}

// initLogger installs the default logger. Logs go to stderr, stdout carries command output.
func initLogger(level, profile string) error {
	parsed, err := parseLevel(level)
	if err != nil {
		return err
	}

	slog.SetDefault(newLogger(os.Stderr, parsed, profile))
	return nil
}
