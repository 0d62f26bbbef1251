package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/antonio-leblanc/working-hours/internal/config"
	"github.com/antonio-leblanc/working-hours/internal/export"
	appLog "github.com/antonio-leblanc/working-hours/internal/log"
	"github.com/antonio-leblanc/working-hours/internal/period"
	"github.com/antonio-leblanc/working-hours/internal/report"
)

const reportCacheTTL = 30 * time.Second

// SnapshotFile is the name of the rendered report PNG inside the output dir.
const SnapshotFile = "report.png"

// ReportRunner produces a report for a period selection.
type ReportRunner interface {
	Run(ctx context.Context, spec period.Spec) (report.Report, error)
}

// Server exposes reports over HTTP: JSON, HTML, xlsx and Prometheus metrics.
type Server struct {
	cfg    *config.Config
	runner ReportRunner
	mux    *http.ServeMux

	// Reports keyed by the normalized query; calendar fetch and analysis
	// are not repeated for every request.
	cacheMu sync.RWMutex
	cache   map[string]cachedReport
	now     func() time.Time
}

type cachedReport struct {
	rep       report.Report
	updatedAt time.Time
}

//go:embed templates
var templatesFS embed.FS

var reportTemplate = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
	"hours": func(h float64) string { return fmt.Sprintf("%.2f", h) },
	"pct":   func(p float64) string { return fmt.Sprintf("%.1f%%", p) },
}).ParseFS(templatesFS, "templates/report.html.tmpl"))

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, runner ReportRunner) *Server {
	s := &Server{
		cfg:    cfg,
		runner: runner,
		mux:    http.NewServeMux(),
		cache:  make(map[string]cachedReport),
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth rather than locking everyone out.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="workhours", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves the API on cfg.Listen until ctx is cancelled.
func StartServer(ctx context.Context, cfg *config.Config, runner ReportRunner) error {
	s := NewServer(cfg, runner)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/report", s.handleReportJSON)
	s.mux.HandleFunc("/api/report.xlsx", s.handleReportXLSX)
	s.mux.HandleFunc("/report", s.handleReportHTML)
	s.mux.HandleFunc("/report.png", s.handleSnapshot)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReportJSON returns the report for the requested period.
//
// GET /api/report?period=week
// GET /api/report?period=isoweek&year=2024&week=11
// GET /api/report?period=monthof&year=2024&month=3
// GET /api/report?period=range&from=2024-03-01&to=2024-03-15
func (s *Server) handleReportJSON(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReportXLSX(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, rep); err != nil {
		appLog.Error("xlsx export failed", err, "run_id", rep.RunID)
		writeError(w, http.StatusInternalServerError, "failed to build workbook")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(rep)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleReportHTML renders the printable report page. The root element
// carries data-ready="true" once rendered, which the snapshot capture
// waits for.
func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, rep); err != nil {
		appLog.Error("report template failed", err, "run_id", rep.RunID)
		http.Error(w, "failed to render report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleSnapshot serves the last captured report PNG from the output dir.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.cfg.OutputDir, SnapshotFile))
}

// report resolves the request's period and returns the (possibly cached)
// report. On failure the error response has already been written.
func (s *Server) report(w http.ResponseWriter, r *http.Request) (report.Report, bool) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return report.Report{}, false
	}

	spec, key, err := SpecFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return report.Report{}, false
	}

	now := s.now()
	s.cacheMu.RLock()
	c, hit := s.cache[key]
	s.cacheMu.RUnlock()
	if hit && now.Sub(c.updatedAt) < reportCacheTTL {
		return c.rep, true
	}

	appLog.Info("api report request", "period", key)
	rep, err := s.runner.Run(r.Context(), spec)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, period.ErrInvalidPeriod) {
			status = http.StatusBadRequest
		}
		appLog.Error("report run failed", err, "period", key)
		writeError(w, status, err.Error())
		return report.Report{}, false
	}

	s.cacheMu.Lock()
	for k, c := range s.cache {
		if now.Sub(c.updatedAt) >= reportCacheTTL {
			delete(s.cache, k)
		}
	}
	s.cache[key] = cachedReport{rep: rep, updatedAt: now}
	s.cacheMu.Unlock()
	return rep, true
}

// SpecFromQuery maps query parameters onto a period selection and a cache
// key identifying it.
func SpecFromQuery(q url.Values) (period.Spec, string, error) {
	kind := strings.ToLower(strings.TrimSpace(q.Get("period")))
	var args []string
	switch kind {
	case "isoweek":
		args = []string{q.Get("year"), q.Get("week")}
	case "monthof":
		args = []string{q.Get("year"), q.Get("month")}
	case "range":
		args = []string{q.Get("from"), q.Get("to")}
	}
	spec, err := period.Parse(kind, args...)
	if err != nil {
		return period.Spec{}, "", err
	}
	key := spec.Kind.String()
	if len(args) > 0 {
		key += ":" + strings.Join(args, ":")
	}
	return spec, key, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
