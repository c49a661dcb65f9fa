package checkpoint

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"toggl-calsync/internal/ports"
)

// AbsentWatermark is the sentinel returned when no checkpoint exists yet.
const AbsentWatermark int64 = -1

const (
	cursorKey = "calsync:checkpoint"
	resumeKey = "calsync:resume_index"
)

// Cursor is the persisted synchronization state: the exclusive lower-bound
// watermark (unix seconds) and, while a batch is mid-flight, the index the
// next run should resume from.
type Cursor struct {
	Watermark   int64
	ResumeIndex int
}

// Absent reports whether the cursor is the cold-start sentinel.
func (c Cursor) Absent() bool { return c.Watermark < 0 }

type payload struct {
	Watermark int64 `json:"watermark"`
}

// Store is the two-tier checkpoint store. The durable tier is the source of
// truth; the cache tier only exists to make reads cheap and may expire.
type Store struct {
	cache   ports.CacheKV
	durable ports.DurableKV
	ttl     time.Duration
	log     *slog.Logger
}

func NewStore(cache ports.CacheKV, durable ports.DurableKV, ttl time.Duration, log *slog.Logger) *Store {
	return &Store{cache: cache, durable: durable, ttl: ttl, log: log}
}

// Read returns the cursor, falling back from the cache tier to the durable
// tier and repopulating the cache on a durable hit. A total miss returns
// the absent sentinel. Malformed payloads are treated as absent and the
// corrupt entry is evicted.
func (s *Store) Read(ctx context.Context) (Cursor, error) {
	cur := Cursor{Watermark: AbsentWatermark}

	if raw, ok, err := s.cache.Get(ctx, cursorKey); err != nil {
		s.log.Debug("checkpoint: cache tier read failed, using durable tier", slog.String("error", err.Error()))
	} else if ok {
		if wm, perr := parsePayload(raw); perr == nil {
			cur.Watermark = wm
		} else {
			s.log.Warn("checkpoint: evicting malformed cache payload", slog.String("payload", raw))
			_ = s.cache.Delete(ctx, cursorKey)
		}
	}

	if cur.Absent() {
		raw, ok, err := s.durable.Get(ctx, cursorKey)
		if err != nil {
			return cur, err
		}
		if ok {
			if wm, perr := parsePayload(raw); perr == nil {
				cur.Watermark = wm
				if cerr := s.cache.Set(ctx, cursorKey, raw, s.ttl); cerr != nil {
					s.log.Debug("checkpoint: cache repopulation failed", slog.String("error", cerr.Error()))
				}
			} else {
				s.log.Warn("checkpoint: evicting malformed durable payload", slog.String("payload", raw))
				_ = s.durable.Delete(ctx, cursorKey)
			}
		}
	}

	raw, ok, err := s.durable.Get(ctx, resumeKey)
	if err != nil {
		return cur, err
	}
	if ok {
		if n, perr := strconv.Atoi(strings.TrimSpace(raw)); perr == nil && n >= 0 {
			cur.ResumeIndex = n
		} else {
			s.log.Warn("checkpoint: evicting malformed resume index", slog.String("payload", raw))
			_ = s.durable.Delete(ctx, resumeKey)
		}
	}
	return cur, nil
}

// Write persists the watermark to both tiers. The durable write must
// succeed; the cache write is best effort.
func (s *Store) Write(ctx context.Context, watermark int64) error {
	raw, err := json.Marshal(payload{Watermark: watermark})
	if err != nil {
		return err
	}
	if err := s.durable.Set(ctx, cursorKey, string(raw)); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, cursorKey, string(raw), s.ttl); err != nil {
		s.log.Debug("checkpoint: cache tier write failed", slog.String("error", err.Error()))
	}
	return nil
}

// WriteResumeIndex records mid-batch progress. Only the durable tier is
// written: intra-run progress does not need a read cache.
func (s *Store) WriteResumeIndex(ctx context.Context, i int) error {
	return s.durable.Set(ctx, resumeKey, strconv.Itoa(i))
}

// ClearResumeIndex marks the batch as fully completed.
func (s *Store) ClearResumeIndex(ctx context.Context) error {
	return s.durable.Delete(ctx, resumeKey)
}

// Clear removes all persisted sync state, forcing the next run onto the
// cold-start window.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.durable.Delete(ctx, cursorKey); err != nil {
		return err
	}
	if err := s.durable.Delete(ctx, resumeKey); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cursorKey); err != nil {
		s.log.Debug("checkpoint: cache tier delete failed", slog.String("error", err.Error()))
	}
	return nil
}

func parsePayload(raw string) (int64, error) {
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return 0, err
	}
	return p.Watermark, nil
}
