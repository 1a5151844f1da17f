// Package log is the process-wide structured logger used by patchman.
//
// Every record carries a category so output from the VCS layer can be told
// apart from manifest or apply progress.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Category groups log records by subsystem.
type Category string

const (
	CatVCS      Category = "vcs"
	CatSelect   Category = "select"
	CatManifest Category = "manifest"
	CatExport   Category = "export"
	CatApply    Category = "apply"
	CatReport   Category = "report"
	CatConfig   Category = "config"
)

var current atomic.Pointer[slog.Logger]

func init() {
	Init(os.Stderr, slog.LevelInfo)
}

// Init replaces the global logger with a text handler writing to w.
func Init(w io.Writer, level slog.Level) {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	current.Store(slog.New(h))
}

// ParseLevel maps a config value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (must be debug, info, warn or error)", s)
	}
}

func Debug(cat Category, msg string, args ...any) {
	current.Load().Debug(msg, withCategory(cat, args)...)
}

func Info(cat Category, msg string, args ...any) {
	current.Load().Info(msg, withCategory(cat, args)...)
}

func Warn(cat Category, msg string, args ...any) {
	current.Load().Warn(msg, withCategory(cat, args)...)
}

// ErrorErr logs msg at error level with err attached under the "err" key.
func ErrorErr(cat Category, msg string, err error, args ...any) {
	args = append(args, "err", err)
	current.Load().Error(msg, withCategory(cat, args)...)
}

func withCategory(cat Category, args []any) []any {
	out := make([]any, 0, len(args)+2)
	out = append(out, "cat", string(cat))
	return append(out, args...)
}
