package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"toggl-calsync/internal/ports"
	"toggl-calsync/internal/usecase"
)

// HTTPServer returns a configured http.Server exposing the manual trigger
// surface. Call ListenAndServe on the returned server in a goroutine and
// Shutdown it on exit.
func (a *App) HTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// /sync?mode=timeout|complete|initial|watch
	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name := r.URL.Query().Get("mode")
		if name == "" {
			name = usecase.ModeTimeout.Name
		}
		mode, ok := usecase.ModeByName(name)
		if !ok {
			http.Error(w, "unknown mode "+name, http.StatusBadRequest)
			return
		}

		var (
			res usecase.RunResult
			err error
		)
		if mode.AutoContinue {
			res, err = a.RunToCompletion(r.Context(), mode)
		} else {
			res, err = a.RunMode(r.Context(), mode)
		}
		writeResult(w, err, map[string]any{
			"mode":         mode.Name,
			"fetched":      res.Fetched,
			"created":      res.Created,
			"updated":      res.Updated,
			"adopted":      res.Adopted,
			"skipped":      res.Skipped,
			"failed":       res.Failed,
			"resume_index": res.ResumeIndex,
			"watermark":    res.Watermark,
		})
	})

	mux.HandleFunc("/dedupe", func(w http.ResponseWriter, r *http.Request) {
		removed, err := a.RemoveDuplicates(r.Context())
		writeResult(w, err, map[string]any{"removed": removed})
	})

	// /sweep?range=short|long
	mux.HandleFunc("/sweep", func(w http.ResponseWriter, r *http.Request) {
		window := usecase.SweepShortRange
		if r.URL.Query().Get("range") == "long" {
			window = usecase.SweepLongRange
		}
		removed, err := a.SweepDeleted(r.Context(), window)
		writeResult(w, err, map[string]any{"removed": removed})
	})

	mux.HandleFunc("/checkpoint", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeResult(w, a.ClearCheckpoint(r.Context()), map[string]any{"cleared": true})
	})

	mux.HandleFunc("/notify-test", func(w http.ResponseWriter, r *http.Request) {
		a.TestNotification(r.Context())
		writeResult(w, nil, map[string]any{"sent": true})
	})

	srv := &http.Server{Addr: addr, Handler: loggingMiddleware(a.log, mux)}
	a.log.Info("http trigger server configured", slog.String("addr", addr))
	return srv
}

func writeResult(w http.ResponseWriter, err error, body map[string]any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ports.ErrLockNotAcquired) {
			status = http.StatusConflict
		}
		w.WriteHeader(status)
		body["status"] = "error"
		body["error"] = err.Error()
		_ = json.NewEncoder(w).Encode(body)
		return
	}
	w.WriteHeader(http.StatusOK)
	body["status"] = "ok"
	_ = json.NewEncoder(w).Encode(body)
}

// loggingMiddleware provides basic request logging.
func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("dur", time.Since(start)),
		)
	})
}
