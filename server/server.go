//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package server exposes the question-answering pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/medwhisper/medwhisper-go/confidence"
	"github.com/medwhisper/medwhisper-go/evidence"
	"github.com/medwhisper/medwhisper-go/log"
	"github.com/medwhisper/medwhisper-go/qa"
)

// Serving defaults applied when a request omits the field.
const (
	DefaultK       = 6
	DefaultAlpha   = 0.65
	DefaultBlendCE = 1.0
	DefaultRole    = "general"
)

// requestIDHeader carries the per-request correlation ID.
const requestIDHeader = "X-Request-ID"

// roleHeader is the fallback role source when the body omits one.
const roleHeader = "X-User-Role"

// Engine answers questions and exposes its evidence set. qa.Engine is the
// production implementation.
type Engine interface {
	Answer(ctx context.Context, req *qa.Request) *qa.Response
	Evidence(ctx context.Context, req *qa.Request) []evidence.Candidate
}

// Server routes HTTP traffic to the answer engine and shapes each response
// payload to the caller's role.
type Server struct {
	engine Engine
	router *mux.Router
}

// Option configures the Server instance.
type Option func(*Server)

// New creates the HTTP server around an answer engine.
func New(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		router: mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type", requestIDHeader},
	})
	s.router.Use(c.Handler)
	s.router.Use(requestIDMiddleware)
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/qa", s.handleQA).Methods(http.MethodPost)
	s.router.HandleFunc("/qa/debug", s.handleDebug).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	preflight := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	s.router.HandleFunc("/qa", preflight).Methods(http.MethodOptions)
}

// qaPayload is the role-shaped answer payload. Fields beyond the answer are
// populated only for clinician roles.
type qaPayload struct {
	Answer     string                 `json:"answer"`
	Confidence *float64               `json:"confidence,omitempty"`
	Citations  []string               `json:"citations,omitempty"`
	Assessment *confidence.Assessment `json:"assessment,omitempty"`
	Decision   qa.Decision            `json:"decision,omitempty"`
	State      qa.State               `json:"state,omitempty"`
}

func (s *Server) handleQA(w http.ResponseWriter, r *http.Request) {
	req := &qa.Request{
		K:       DefaultK,
		Alpha:   DefaultAlpha,
		BlendCE: DefaultBlendCE,
	}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = r.Header.Get(roleHeader)
	}
	if req.Role == "" {
		req.Role = DefaultRole
	}
	req.Role = strings.ToLower(req.Role)

	resp := s.engine.Answer(r.Context(), req)

	payload := qaPayload{Answer: resp.Answer}
	if isClinician(req.Role) {
		conf := roundTo(resp.Confidence, 3)
		payload.Confidence = &conf
		payload.Citations = resp.Citations
		payload.Assessment = resp.Assessment
		payload.Decision = resp.Decision
		payload.State = resp.State
	}
	s.writeJSON(w, payload)
}

// handleDebug returns the ranked evidence set for a query without running
// generation. It exists for retrieval tuning, not for end users.
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}
	req := &qa.Request{
		Query:   query,
		K:       queryInt(r, "k", DefaultK),
		Alpha:   queryFloat(r, "alpha", DefaultAlpha),
		BlendCE: queryFloat(r, "blend_ce", DefaultBlendCE),
	}

	ranked := s.engine.Evidence(r.Context(), req)
	s.writeJSON(w, map[string]any{
		"q":        query,
		"k":        req.K,
		"evidence": ranked,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

// requestIDMiddleware assigns each request a correlation ID and logs its
// latency on completion.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debugf("request %s %s %s took %s",
			reqID, r.Method, r.URL.Path, time.Since(start).Truncate(time.Microsecond))
	})
}

// isClinician reports whether the role may see confidence and citations.
func isClinician(role string) bool {
	switch role {
	case "doctor", "clinician":
		return true
	}
	return false
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}
