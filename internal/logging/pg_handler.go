package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	flushBatch    = 50
	flushEvery    = 5 * time.Second
	flushDeadline = 10 * time.Second
)

// systemLogSink buffers rows and writes them to system_logs. It is shared by a
// PGHandler and every handler derived from it with WithAttrs/WithGroup.
type systemLogSink struct {
	db *gorm.DB

	mu      sync.Mutex
	pending []models.SystemLog

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func (s *systemLogSink) run() {
	t := time.NewTicker(flushEvery)
	defer t.Stop()
	defer close(s.done)
	for {
		select {
		case <-t.C:
			s.flush()
		case <-s.stop:
			s.flush()
			return
		}
	}
}

func (s *systemLogSink) add(row models.SystemLog) {
	s.mu.Lock()
	s.pending = append(s.pending, row)
	full := len(s.pending) >= flushBatch
	s.mu.Unlock()
	if full {
		go s.flush()
	}
}

func (s *systemLogSink) flush() {
	s.mu.Lock()
	rows := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(rows) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushDeadline)
	defer cancel()
	// Written to stderr directly: logging this through slog would loop back here.
	if err := s.db.WithContext(ctx).CreateInBatches(rows, flushBatch).Error; err != nil {
		fmt.Fprintf(os.Stderr, "system_logs write failed, %d rows lost: %v\n", len(rows), err)
	}
}

// PGHandler is an slog.Handler persisting records at or above its level to the
// system_logs table in batches.
type PGHandler struct {
	sink   *systemLogSink
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

// NewPGHandler starts the background writer. Stop must be called on shutdown.
func NewPGHandler(db *gorm.DB) *PGHandler {
	sink := &systemLogSink{db: db, stop: make(chan struct{}), done: make(chan struct{})}
	go sink.run()
	return &PGHandler{sink: sink, level: slog.LevelError}
}

// Stop writes whatever is still buffered and ends the writer. Safe to call
// more than once.
func (h *PGHandler) Stop() {
	h.sink.stopOnce.Do(func() { close(h.sink.stop) })
	<-h.sink.done
}

func (h *PGHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *PGHandler) Handle(_ context.Context, r slog.Record) error {
	row := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: r.Time.UTC(),
		Level:     r.Level.String(),
		Message:   r.Message,
	}
	extra := map[string]any{}

	for _, a := range h.attrs {
		h.collect(&row, extra, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collect(&row, extra, h.prefix, a)
		return true
	})

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			row.Extra = datatypes.JSON(b)
		}
	}
	h.sink.add(row)
	return nil
}

// collect routes well-known keys to their columns and everything else into
// extra, flattening groups as dotted keys.
func (h *PGHandler) collect(row *models.SystemLog, extra map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, g := range a.Value.Group() {
			h.collect(row, extra, p, g)
		}
		return
	}
	if prefix != "" {
		extra[prefix+a.Key] = a.Value.Any()
		return
	}

	switch a.Key {
	case "request_id":
		row.RequestID = a.Value.String()
	case "user_id":
		id := a.Value.String()
		row.UserID = &id
	case "action", "job":
		row.Action = a.Value.String()
	case "error":
		row.Error = a.Value.String()
	case "latency_ms", "duration_ms":
		row.LatencyMs = millis(a.Value)
	default:
		extra[a.Key] = a.Value.Any()
	}
}

func (h *PGHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	if h.prefix != "" {
		grouped := make([]slog.Attr, 0, len(attrs))
		for _, a := range attrs {
			grouped = append(grouped, slog.Attr{Key: strings.TrimSuffix(h.prefix, ".") + "." + a.Key, Value: a.Value})
		}
		attrs = grouped
	}
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *PGHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func millis(v slog.Value) int {
	switch v.Kind() {
	case slog.KindInt64:
		return int(v.Int64())
	case slog.KindUint64:
		return int(v.Uint64())
	case slog.KindFloat64:
		return int(math.Round(v.Float64()))
	case slog.KindDuration:
		return int(v.Duration().Milliseconds())
	}
	return 0
}
