// Package server exposes a loaded session over a JSON HTTP API: the fill
// scale for every feature, region inspection, and tree cache statistics.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/region-atlas/internal/reconcile"
	"github.com/sells-group/region-atlas/internal/session"
)

// Options configures the HTTP handler.
type Options struct {
	AllowedOrigins []string
}

// Server serves one session.
type Server struct {
	sess *session.Session
	log  *zap.Logger
}

// New returns the API router for sess.
func New(sess *session.Session, opts Options) http.Handler {
	s := &Server{
		sess: sess,
		log:  zap.L().With(zap.String("component", "server")),
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/domain", s.handleDomain)
		r.Get("/features", s.handleFeatures)
		r.Get("/features/{index}", s.handleFeature)
		r.Get("/map", s.handleMap)
		r.Post("/resolve", s.handleResolve)
		r.Get("/cache", s.handleCache)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"session_id": s.sess.ID(),
	})
}

func (s *Server) handleDomain(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"field":  s.sess.FillField(),
		"domain": s.sess.Domain(),
	})
}

type featureSummary struct {
	Index  int              `json:"index"`
	ID     string           `json:"id,omitempty"`
	Name   string           `json:"name,omitempty"`
	Method reconcile.Method `json:"method"`
	Fill   session.Fill     `json:"fill"`
	Bounds *[4]float64      `json:"bounds,omitempty"`
}

func (s *Server) handleFeatures(w http.ResponseWriter, _ *http.Request) {
	feats := s.sess.Features()
	out := make([]featureSummary, 0, len(feats))
	for i, f := range feats {
		res := s.sess.Resolve(f.Properties)
		sum := featureSummary{
			Index:  i,
			ID:     f.ID,
			Name:   res.Name,
			Method: res.Method,
			Fill:   s.sess.FillFor(res),
		}
		if b := f.Bounds(); b != nil && !b.IsEmpty() {
			sum.Bounds = &[4]float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)}
		}
		out = append(out, sum)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFeature(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid feature index")
		return
	}
	s.writeInspection(w, func() (*session.Inspection, error) { return s.sess.InspectFeature(i) })
}

type resolveRequest struct {
	Properties map[string]any `json:"properties"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Properties) == 0 {
		writeError(w, http.StatusBadRequest, "properties are required")
		return
	}
	s.writeInspection(w, func() (*session.Inspection, error) { return s.sess.Inspect(req.Properties) })
}

func (s *Server) writeInspection(w http.ResponseWriter, inspect func() (*session.Inspection, error)) {
	got, err := inspect()
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "region not found")
	case err != nil:
		s.log.Error("inspection failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "inspection failed")
	default:
		writeJSON(w, http.StatusOK, got)
	}
}

// handleMap renders every feature as a GeoJSON FeatureCollection carrying
// its fill in the properties.
func (s *Server) handleMap(w http.ResponseWriter, _ *http.Request) {
	feats := s.sess.Features()
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(feats))}
	for _, f := range feats {
		fill := s.sess.Fill(f.Properties)
		props := make(map[string]any, len(f.Properties)+3)
		for k, v := range f.Properties {
			props[k] = v
		}
		props["matched"] = fill.Matched
		props["value"] = fill.Value
		props["t"] = fill.T
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.ID,
			Geometry:   f.Geometry,
			Properties: props,
		})
	}

	data, err := json.Marshal(fc)
	if err != nil {
		s.log.Error("encode map", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleCache(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.CacheStats())
}

// writeJSON encodes v in full before writing the header. Encode failures
// answer 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
		buf.Reset()
		buf.WriteString(`{"error":"encode failed"}` + "\n")
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
