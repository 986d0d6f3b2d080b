// Package server exposes the aggregator outputs over a local HTTP dashboard:
// JSON endpoints per table plus an HTML overview with the rendered narrative.
// The view is read-only and memoized; aggregates are recomputed only when the
// underlying frame is replaced.
package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"

	"github.com/pbandeira/solmon/internal/dataset"
	"github.com/pbandeira/solmon/internal/indicators"
	"github.com/pbandeira/solmon/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

var md = goldmark.New()

// view holds the aggregates computed once per loaded frame. Building it
// eagerly keeps every request handler a plain lookup, which is the whole
// memoization story: recomputation happens only on Reload.
type view struct {
	Records    []dataset.Record
	Executive  indicators.Executive
	Advanced   indicators.Advanced
	Funnel     []indicators.FunnelRow
	BreachOrg  []indicators.BreachRow
	LeadGroup  []indicators.LeadTimeRow
	Completion []indicators.CompletionRow
	Aging      []indicators.DistributionRow
	Dimensions []indicators.DistributionRow
	RiskDist   []indicators.DistributionRow
	Narrative  string
}

func buildView(frame *dataset.Frame) *view {
	recs := frame.Records
	v := &view{
		Records:    recs,
		Executive:  indicators.ExecutiveKPIs(recs),
		Advanced:   indicators.AdvancedKPIs(recs),
		Funnel:     indicators.Funnel(recs),
		BreachOrg:  indicators.BreachRateBy(recs, indicators.ByOrgUnit),
		LeadGroup:  indicators.LeadTimeBy(recs, indicators.ByGroup),
		Completion: indicators.CompletionBy(recs, indicators.ByGroup),
		Aging:      indicators.AgingDistribution(recs),
		Dimensions: indicators.DimensionDistribution(recs),
		RiskDist:   indicators.RiskDistribution(recs),
	}
	v.Narrative = report.Narrative(report.Input{
		Executive:  v.Executive,
		Advanced:   v.Advanced,
		Funnel:     v.Funnel,
		Dimensions: v.Dimensions,
		Critical:   indicators.TopCritical(recs, 5),
	})
	return v
}

// Server is the HTTP server over one enriched frame.
type Server struct {
	log  *logrus.Logger
	page *template.Template
	mux  *http.ServeMux

	mu   sync.RWMutex
	view *view
}

// New creates a server for the given frame.
func New(frame *dataset.Frame, log *logrus.Logger) (*Server, error) {
	page, err := template.New("index.html").Funcs(template.FuncMap{
		"markdown": renderMarkdown,
	}).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing dashboard template: %w", err)
	}

	s := &Server{log: log, page: page, mux: http.NewServeMux(), view: buildView(frame)}
	s.routes()
	return s, nil
}

// Reload replaces the served frame, rebuilding the memoized aggregates.
func (s *Server) Reload(frame *dataset.Frame) {
	v := buildView(frame)
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/api/kpis", s.jsonHandler(func(v *view) any { return v.Executive }))
	s.mux.HandleFunc("/api/kpis/advanced", s.jsonHandler(func(v *view) any { return v.Advanced }))
	s.mux.HandleFunc("/api/funnel", s.jsonHandler(func(v *view) any { return v.Funnel }))
	s.mux.HandleFunc("/api/breach-rate", s.jsonHandler(func(v *view) any { return v.BreachOrg }))
	s.mux.HandleFunc("/api/lead-time", s.jsonHandler(func(v *view) any { return v.LeadGroup }))
	s.mux.HandleFunc("/api/completion", s.jsonHandler(func(v *view) any { return v.Completion }))
	s.mux.HandleFunc("/api/aging", s.jsonHandler(func(v *view) any { return v.Aging }))
	s.mux.HandleFunc("/api/dimensions", s.jsonHandler(func(v *view) any { return v.Dimensions }))
	s.mux.HandleFunc("/api/risk", s.jsonHandler(func(v *view) any { return v.RiskDist }))
	s.mux.HandleFunc("/api/records", s.handleRecords)
	s.mux.HandleFunc("/api/critical", s.handleCritical)
}

func (s *Server) currentView() *view {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

func (s *Server) jsonHandler(pick func(*view) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, pick(s.currentView()))
	}
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.currentView().Records)
}

func (s *Server) handleCritical(w http.ResponseWriter, r *http.Request) {
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	s.writeJSON(w, indicators.TopCritical(s.currentView().Records, n))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	v := s.currentView()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, map[string]any{
		"Executive": v.Executive,
		"Advanced":  v.Advanced,
		"Funnel":    v.Funnel,
		"Narrative": v.Narrative,
	}); err != nil {
		s.log.WithError(err).Error("rendering dashboard")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Error("encoding response")
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(frame *dataset.Frame, port int, log *logrus.Logger) error {
	srv, err := New(frame, log)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.WithField("addr", addr).Info("dashboard listening")
	return http.ListenAndServe(addr, srv.Handler())
}
