//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package api provides the HTTP server that starts, resumes and inspects
// diagnosis runs.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/yuin/goldmark"

	"trpc.group/trpc-go/maintenance-agent-go/diagnosis"
	"trpc.group/trpc-go/maintenance-agent-go/graph"
	"trpc.group/trpc-go/maintenance-agent-go/log"
	"trpc.group/trpc-go/maintenance-agent-go/persistence"
	"trpc.group/trpc-go/maintenance-agent-go/runner"
	"trpc.group/trpc-go/maintenance-agent-go/session"
)

// Agent is the part of runner.Runner the server drives.
type Agent interface {
	Run(ctx context.Context, issueReport string, opts ...runner.RunOption) (*runner.Result, error)
	Resume(ctx context.Context, threadID string) (*runner.Result, error)
	RecentSessions(ctx context.Context, limit int) ([]session.Summary, error)
	RunDocuments(ctx context.Context, threadID string) (*persistence.RunDocuments, error)
	Mermaid() string
}

var _ Agent = (*runner.Runner)(nil)

// RunResponse is the body of /run-agent and /resume-agent.
type RunResponse struct {
	ThreadID           string                   `json:"thread_id"`
	IssueReport        string                   `json:"issue_report"`
	ChainOfThought     string                   `json:"chain_of_thought"`
	Updates            []string                 `json:"updates"`
	SimilarIssues      []diagnosis.SimilarIssue `json:"similar_issues_list"`
	CriticalConditions []string                 `json:"critical_conditions"`
	Recommendation     string                   `json:"recommendation"`
	RecommendationHTML string                   `json:"recommendation_html"`
}

// Server exposes the runner over HTTP.
type Server struct {
	agent   Agent
	router  *mux.Router
	md      goldmark.Markdown
	metrics *Metrics
	origins []string
}

// Option configures the Server instance.
type Option func(*Server)

// WithMetrics sets the Prometheus collectors. If omitted, a private
// registry is used.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAllowedOrigins restricts CORS to origins. The default "*" answers any
// origin without credentials; credentials are allowed only for an explicit
// origin list.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// New creates the server around agent.
func New(agent Agent, opts ...Option) *Server {
	s := &Server{
		agent:  agent,
		router: mux.NewRouter(),
		md:     goldmark.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowCredentials: !slices.Contains(s.origins, "*"),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})
	s.router.Use(c.Handler)
	s.router.Use(s.metrics.middleware)
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/run-agent", s.handleRunAgent).Methods(http.MethodGet)
	s.router.HandleFunc("/resume-agent", s.handleResumeAgent).Methods(http.MethodGet)
	s.router.HandleFunc("/get-sessions", s.handleGetSessions).Methods(http.MethodGet)
	s.router.HandleFunc("/get-run-documents", s.handleGetRunDocuments).Methods(http.MethodGet)
	s.router.HandleFunc("/graph", s.handleGraph).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Server is running"})
}

func (s *Server) handleRunAgent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	issue := q.Get("issue_report")
	if issue == "" {
		issue = q.Get("query_reported")
	}
	var opts []runner.RunOption
	if key := q.Get("embedding_key"); key != "" {
		opts = append(opts, runner.WithRunEmbeddingKey(key))
	}
	log.Infof("handleRunAgent called: issue_report=%q", issue)
	res, err := s.agent.Run(r.Context(), issue, opts...)
	s.metrics.recordRun(err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.runResponse(res))
}

func (s *Server) handleResumeAgent(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("thread_id")
	log.Infof("handleResumeAgent called: thread_id=%s", threadID)
	res, err := s.agent.Resume(r.Context(), threadID)
	s.metrics.recordRun(err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.runResponse(res))
}

func (s *Server) handleGetSessions(w http.ResponseWriter, r *http.Request) {
	limit := session.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeDetail(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	sessions, err := s.agent.RecentSessions(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetRunDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.agent.RunDocuments(r.Context(), r.URL.Query().Get("thread_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(s.agent.Mermaid())); err != nil {
		log.Errorf("write graph response: %v", err)
	}
}

func (s *Server) runResponse(res *runner.Result) RunResponse {
	st := res.State
	critical := st.CriticalConditions
	if critical == nil {
		critical = []string{}
	}
	return RunResponse{
		ThreadID:           res.ThreadID,
		IssueReport:        st.IssueReport,
		ChainOfThought:     st.ChainOfThought,
		Updates:            st.Updates,
		SimilarIssues:      st.SimilarIssues,
		CriticalConditions: critical,
		Recommendation:     st.RecommendationText,
		RecommendationHTML: s.renderHTML(st.RecommendationText),
	}
}

// renderHTML converts markdown to HTML. Conversion errors fall back to the
// raw text.
func (s *Server) renderHTML(markdown string) string {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(markdown), &buf); err != nil {
		log.Warnf("render recommendation html: %v", err)
		return markdown
	}
	return buf.String()
}

// writeError maps runner errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runner.ErrEmptyIssueReport), errors.Is(err, runner.ErrThreadIDRequired):
		s.writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, graph.ErrCheckpointNotFound), errors.Is(err, session.ErrNotFound):
		s.writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, runner.ErrNoRunDocuments):
		s.writeDetail(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Errorf("request failed: %v", err)
		s.writeDetail(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeDetail(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("encode response: %v", err)
	}
}
