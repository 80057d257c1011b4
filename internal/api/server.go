// Package api exposes the chamber's measurement data and scan controls
// over HTTP: axis and magnitude queries for the plotting frontend, scan
// start/abort/status, positioner jog, and session persistence.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/hrg-lab/chamber/internal/db"
	"github.com/hrg-lab/chamber/internal/scan"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Positioner is the subset of the rotator controller the API needs for
// the pose and jog endpoints.
type Positioner interface {
	CurrentAzimuth() float64
	CurrentElevation() float64
	MoveAzimuthBy(ctx context.Context, deg float64) error
	MoveElevationBy(ctx context.Context, deg float64) error
	Zero()
}

type Server struct {
	mgr   *scan.Manager
	pos   Positioner
	store *db.DB
}

// NewServer creates an API server over the scan manager, positioner, and
// session store.
func NewServer(mgr *scan.Manager, pos Positioner, store *db.DB) *Server {
	return &Server{
		mgr:   mgr,
		pos:   pos,
		store: store,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/frequencies", s.listFrequencies)
	mux.HandleFunc("/azimuths", s.listAzimuths)
	mux.HandleFunc("/elevations", s.listElevations)
	mux.HandleFunc("/magnitudes", s.listMagnitudes)
	mux.HandleFunc("/scan", s.startScan)
	mux.HandleFunc("/scan/abort", s.abortScan)
	mux.HandleFunc("/scan/status", s.scanStatus)
	mux.HandleFunc("/positioner", s.showPose)
	mux.HandleFunc("/positioner/jog", s.jogPositioner)
	mux.HandleFunc("/positioner/zero", s.zeroPositioner)
	mux.HandleFunc("/sessions", s.listSessions)
	mux.HandleFunc("/sessions/save", s.saveSession)
	mux.HandleFunc("/sessions/load", s.loadSession)
	mux.HandleFunc("/clear", s.clearModels)
	mux.HandleFunc("/plot/polar", s.plotPolar)
	mux.HandleFunc("/plot/rectangular", s.plotRectangular)
	mux.HandleFunc("/plot/png", s.exportPNG)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to encode response")
	}
}
