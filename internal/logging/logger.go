package logging

import (
	"io"
	"log/slog"
	"os"

	"gorm.io/gorm"
)

// Setup initializes the global slog logger with JSON output to stdout.
func Setup() {
	slog.SetDefault(slog.New(newJSONHandler(os.Stdout)))
}

// Attach fans the default logger out to stdout and a PGHandler writing ERROR+
// records to db. The caller must Stop the returned handler on shutdown.
func Attach(db *gorm.DB) *PGHandler {
	pg := NewPGHandler(db)
	slog.SetDefault(slog.New(NewMultiHandler(newJSONHandler(os.Stdout), pg)))
	return pg
}

func newJSONHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
}
