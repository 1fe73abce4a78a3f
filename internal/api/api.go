// Package api exposes the HTTP surface: tenant provisioning, config
// access, interactive chat, and on-demand report generation.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openbrief/marketbrief/internal/agent"
	"github.com/openbrief/marketbrief/internal/buildinfo"
	"github.com/openbrief/marketbrief/internal/report"
	"github.com/openbrief/marketbrief/internal/tenant"
	"github.com/openbrief/marketbrief/internal/workspace"
)

// Server handles the HTTP API.
type Server struct {
	logger     *slog.Logger
	engine     *agent.Engine
	generator  *report.Generator
	workspaces *workspace.Manager
	tenants    *tenant.Store

	httpServer *http.Server
}

// Options wires the server.
type Options struct {
	Logger     *slog.Logger
	Engine     *agent.Engine
	Generator  *report.Generator
	Workspaces *workspace.Manager
	Tenants    *tenant.Store
	Address    string
	Port       int
}

// NewServer creates the API server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:     logger.With("component", "api"),
		engine:     opts.Engine,
		generator:  opts.Generator,
		workspaces: opts.Workspaces,
		tenants:    opts.Tenants,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/tenants", s.handleCreateTenant)
	mux.HandleFunc("GET /v1/tenants", s.handleListTenants)
	mux.HandleFunc("GET /v1/tenants/{id}/config", s.handleGetConfig)
	mux.HandleFunc("PUT /v1/tenants/{id}/config", s.handlePutConfig)
	mux.HandleFunc("DELETE /v1/tenants/{id}", s.handleDeleteTenant)
	mux.HandleFunc("POST /v1/chat", s.handleChat)
	mux.HandleFunc("POST /v1/reports", s.handleReports)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Address, opts.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the underlying mux, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("api listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response failed", "error", err)
	}
}

// writeError maps domain errors to status codes with a short message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, workspace.ErrNotFound) {
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
		"uptime":  buildinfo.Uptime().String(),
	})
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID string `json:"tenant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := workspace.ValidateTenantID(req.TenantID); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	path, err := s.workspaces.Create(req.TenantID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cfg, err := s.tenants.Init(req.TenantID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.engine.Invalidate(req.TenantID)

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"tenant_id": req.TenantID,
		"workspace": path,
		"config":    cfg,
	})
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	ids, err := s.workspaces.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tenants": ids})
}

func (s *Server) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.workspaces.Delete(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.engine.Invalidate(id)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.workspaces.Exists(id) {
		s.writeError(w, fmt.Errorf("tenant %s: %w", id, workspace.ErrNotFound))
		return
	}
	cfg, err := s.tenants.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Watchlist   *tenant.Watchlist   `json:"watchlist"`
		Preferences *tenant.Preferences `json:"preferences"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Watchlist == nil && req.Preferences == nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "nothing to update"})
		return
	}

	cfg, err := s.tenants.Update(id, func(c *tenant.Config) {
		if req.Watchlist != nil {
			c.Watchlist = *req.Watchlist
		}
		if req.Preferences != nil {
			c.Preferences = *req.Preferences
		}
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID   string `json:"tenant_id"`
		Message    string `json:"message"`
		SessionKey string `json:"session_key"`
		Channel    string `json:"channel"`
		ChatID     string `json:"chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TenantID == "" || req.Message == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tenant_id and message are required"})
		return
	}
	if req.Channel == "" {
		req.Channel = "api"
	}

	response, err := s.engine.ProcessForUser(r.Context(), req.TenantID, req.Message, req.SessionKey, req.Channel, req.ChatID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID   string `json:"tenant_id"`
		ReportType string `json:"report_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TenantID == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tenant_id is required"})
		return
	}

	res, err := s.generator.Generate(r.Context(), req.TenantID, req.ReportType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"report_id":    res.ReportID,
		"report_type":  res.ReportType,
		"generated_at": res.GeneratedAt,
		"degraded":     res.Degraded,
	})
}
