// CLAUDE:SUMMARY chi routes for the feed, session status, attempt journal and operator re-initialization.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/teamsfeed/feed/internal/kit"
)

const defaultAttemptLimit = 20

type attemptsRequest struct {
	Limit int `json:"limit,omitempty"`
}

func (s *Service) feedEndpoint() kit.Endpoint {
	return kit.Logging(s.logger, "feed")(func(ctx context.Context, _ any) (any, error) {
		return s.GetData(ctx)
	})
}

func (s *Service) sessionEndpoint() kit.Endpoint {
	return kit.Logging(s.logger, "session")(func(_ context.Context, _ any) (any, error) {
		return s.Status(), nil
	})
}

func (s *Service) attemptsEndpoint() kit.Endpoint {
	return kit.Logging(s.logger, "attempts")(func(ctx context.Context, req any) (any, error) {
		limit := defaultAttemptLimit
		if r, ok := req.(*attemptsRequest); ok && r.Limit > 0 {
			limit = r.Limit
		}
		return s.Attempts(ctx, limit)
	})
}

func (s *Service) initializeEndpoint() kit.Endpoint {
	return kit.Logging(s.logger, "initialize")(func(_ context.Context, _ any) (any, error) {
		if err := s.Trigger(); err != nil {
			return nil, err
		}
		return map[string]string{"status": "initializing"}, nil
	})
}

// RegisterHTTP mounts the feed API on r.
func (s *Service) RegisterHTTP(r chi.Router) {
	feedEP := s.feedEndpoint()
	sessionEP := s.sessionEndpoint()
	attemptsEP := s.attemptsEndpoint()
	initEP := s.initializeEndpoint()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/feed", func(w http.ResponseWriter, r *http.Request) {
		resp, err := feedEP(reqCtx(r), nil)
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			resp, _ := sessionEP(reqCtx(r), nil)
			writeJSON(w, http.StatusOK, resp)
		})

		r.Get("/attempts", func(w http.ResponseWriter, r *http.Request) {
			req := &attemptsRequest{Limit: queryInt(r, "limit", defaultAttemptLimit)}
			resp, err := attemptsEP(reqCtx(r), req)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Post("/initialize", func(w http.ResponseWriter, r *http.Request) {
			resp, err := initEP(reqCtx(r), nil)
			if errors.Is(err, ErrBusy) {
				writeError(w, http.StatusConflict, err)
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusAccepted, resp)
		})
	})
}

// reqCtx carries chi's request ID, when set, into the endpoint logs.
func reqCtx(r *http.Request) context.Context {
	ctx := kit.WithTransport(r.Context(), "http")
	if id := middleware.GetReqID(ctx); id != "" {
		ctx = kit.WithRequestID(ctx, id)
	}
	return ctx
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
