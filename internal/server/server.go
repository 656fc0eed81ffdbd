// Package server exposes finished backtest runs over a REST API and streams
// the progress of a live backtest to websocket subscribers.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/pairtrade/internal/backtest/engine"
	"github.com/rxtech-lab/pairtrade/internal/logger"
	"github.com/rxtech-lab/pairtrade/internal/results"
	"go.uber.org/zap"
)

// Progress event types sent on the websocket.
const (
	EventBacktestStart = "backtest_start"
	EventRunStart      = "run_start"
	EventProgress      = "progress"
	EventRunEnd        = "run_end"
	EventBacktestEnd   = "backtest_end"
)

// ProgressEvent is one message on the progress websocket. Current and Total
// count processed bars for progress events; Total carries the bar count on
// run_start and TotalRuns the run count on backtest_start.
type ProgressEvent struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id,omitempty"`
	Pair      string `json:"pair,omitempty"`
	Current   int    `json:"current,omitempty"`
	Total     int    `json:"total,omitempty"`
	TotalRuns int    `json:"total_runs,omitempty"`
	// Folder is the run's artifact directory relative to the results folder,
	// set on run_end.
	Folder string    `json:"folder,omitempty"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}

// RunSummary is one finished run discovered in the results folder.
type RunSummary struct {
	ID        string    `json:"id"`
	Pair      string    `json:"pair"`
	Timestamp time.Time `json:"timestamp"`
	// Folder is the run's artifact directory relative to the results folder.
	Folder      string  `json:"folder"`
	TotalReturn float64 `json:"total_return"`
	MaxDrawdown float64 `json:"max_drawdown"`
	NumTrades   int     `json:"num_trades"`
	TotalPnL    float64 `json:"total_pnl"`
}

// Server serves the artifacts of finished backtest runs (stats, trades,
// equity curve, html report) over a REST API and fans live progress events
// out to websocket subscribers.
type Server struct {
	mu sync.RWMutex

	// HTTP server
	httpServer *http.Server
	listener   net.Listener

	// WebSocket upgrader
	upgrader websocket.Upgrader

	resultsFolder string
	logger        *logger.Logger

	// Live progress, keyed by run id. currentRunID attributes per-bar
	// progress callbacks, which carry no run identity themselves.
	progress     map[string]ProgressEvent
	currentRunID string
	currentPair  string

	// WebSocket connections
	wsConnections map[*websocket.Conn]bool
	wsMu          sync.RWMutex
}

// NewServer creates a results server over the given results folder. The
// folder does not need to exist yet; runs appear as they are written.
func NewServer(resultsFolder string, log *logger.Logger) *Server {
	return &Server{
		mu: sync.RWMutex{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		resultsFolder: resultsFolder,
		logger:        log,
		progress:      make(map[string]ProgressEvent),
		currentRunID:  "",
		currentPair:   "",
		wsConnections: make(map[*websocket.Conn]bool),
		wsMu:          sync.RWMutex{},
		httpServer:    nil,
		listener:      nil,
	}
}

// Start begins listening on the given address. An empty address picks a free
// port; the chosen address is available from Address.
func (s *Server) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	router := mux.NewRouter()

	// REST API endpoints
	router.HandleFunc("/api/v1/runs", s.handleListRuns).Methods("GET")
	router.HandleFunc("/api/v1/runs/{id}/stats", s.handleRunStats).Methods("GET")
	router.HandleFunc("/api/v1/runs/{id}/trades", s.handleRunTrades).Methods("GET")
	router.HandleFunc("/api/v1/runs/{id}/equity", s.handleRunEquity).Methods("GET")
	router.HandleFunc("/api/v1/runs/{id}/report", s.handleRunReport).Methods("GET")
	router.HandleFunc("/api/v1/progress", s.handleProgress).Methods("GET")

	// Raw artifact files (parquet, csv, yaml, html)
	router.PathPrefix("/artifacts/").Handler(
		http.StripPrefix("/artifacts/", http.FileServer(http.Dir(s.resultsFolder))))

	// WebSocket endpoint
	router.HandleFunc("/ws/progress", s.handleWebSocket)

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop closes all websocket connections and shuts the HTTP server down.
func (s *Server) Stop() error {
	// Close all WebSocket connections
	s.wsMu.Lock()
	for conn := range s.wsConnections {
		conn.Close()
	}
	s.wsConnections = make(map[*websocket.Conn]bool)
	s.wsMu.Unlock()

	// Shutdown HTTP server
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Address returns the address the server is listening on.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// BaseURL returns the base URL for the server.
func (s *Server) BaseURL() string {
	return "http://" + s.Address()
}

// WebSocketURL returns the WebSocket URL for the server.
func (s *Server) WebSocketURL() string {
	return "ws://" + s.Address()
}

// Callbacks returns engine lifecycle callbacks that publish progress events
// to every websocket subscriber. Pass them to Engine.Run to stream a live
// backtest through the server.
func (s *Server) Callbacks() engine.LifecycleCallbacks {
	onBacktestStart := engine.OnBacktestStartCallback(func(totalRuns int) error {
		s.publish(ProgressEvent{Type: EventBacktestStart, TotalRuns: totalRuns, Time: time.Now()})

		return nil
	})

	onRunStart := engine.OnRunStartCallback(func(runID string, pair string, totalDataPoints int) error {
		s.mu.Lock()
		s.currentRunID = runID
		s.currentPair = pair
		s.mu.Unlock()

		s.publish(ProgressEvent{Type: EventRunStart, RunID: runID, Pair: pair, Total: totalDataPoints, Time: time.Now()})

		return nil
	})

	onProcessData := engine.OnProcessDataCallback(func(current int, total int) error {
		s.mu.RLock()
		runID := s.currentRunID
		pair := s.currentPair
		s.mu.RUnlock()

		s.publish(ProgressEvent{Type: EventProgress, RunID: runID, Pair: pair, Current: current, Total: total, Time: time.Now()})

		return nil
	})

	onRunEnd := engine.OnRunEndCallback(func(runID string, pair string, resultFolderPath string) {
		folder := resultFolderPath
		if rel, err := filepath.Rel(s.resultsFolder, resultFolderPath); err == nil {
			folder = filepath.ToSlash(rel)
		}

		s.publish(ProgressEvent{Type: EventRunEnd, RunID: runID, Pair: pair, Folder: folder, Time: time.Now()})
	})

	onBacktestEnd := engine.OnBacktestEndCallback(func(err error) {
		event := ProgressEvent{Type: EventBacktestEnd, Time: time.Now()}
		if err != nil {
			event.Error = err.Error()
		}

		s.publish(event)
	})

	return engine.LifecycleCallbacks{
		OnBacktestStart: &onBacktestStart,
		OnBacktestEnd:   &onBacktestEnd,
		OnRunStart:      &onRunStart,
		OnRunEnd:        &onRunEnd,
		OnProcessData:   &onProcessData,
	}
}

// publish records the latest event per run and fans it out to every
// connected subscriber. Fan-out holds the write lock so concurrent engine
// callbacks cannot interleave frames on one connection.
func (s *Server) publish(event ProgressEvent) {
	if event.RunID != "" {
		s.mu.Lock()
		s.progress[event.RunID] = event
		s.mu.Unlock()
	}

	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	for conn := range s.wsConnections {
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(s.wsConnections, conn)
		}
	}
}

// handleListRuns handles GET /api/v1/runs
func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	runs, err := results.Scan(s.resultsFolder, s.logger)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, s.newRunSummary(run))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

// handleRunStats handles GET /api/v1/runs/{id}/stats
func (s *Server) handleRunStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	run, found, err := results.Find(s.resultsFolder, vars["id"], s.logger)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !found {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run.Stats)
}

// handleRunTrades handles GET /api/v1/runs/{id}/trades
func (s *Server) handleRunTrades(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	run, found, err := results.Find(s.resultsFolder, vars["id"], s.logger)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !found {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	trades, err := run.ReadTrades()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// handleRunEquity handles GET /api/v1/runs/{id}/equity
func (s *Server) handleRunEquity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	run, found, err := results.Find(s.resultsFolder, vars["id"], s.logger)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !found {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	points, err := run.ReadEquity()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(points)
}

// handleRunReport handles GET /api/v1/runs/{id}/report
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	run, found, err := results.Find(s.resultsFolder, vars["id"], s.logger)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !found {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	reportPath := run.ReportPath()
	if _, err := os.Stat(reportPath); err != nil {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, reportPath)
}

// handleProgress handles GET /api/v1/progress. It returns the latest
// progress event per run, a polling fallback for the websocket stream.
func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	progress := make(map[string]ProgressEvent, len(s.progress))
	for runID, event := range s.progress {
		progress[runID] = event
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(progress)
}

// handleWebSocket handles GET /ws/progress
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.wsMu.Lock()
	s.wsConnections[conn] = true
	s.wsMu.Unlock()

	defer func() {
		s.wsMu.Lock()
		delete(s.wsConnections, conn)
		s.wsMu.Unlock()
		conn.Close()
	}()

	// Hold the connection open until the client goes away. Subscribers only
	// receive; inbound frames are discarded.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) newRunSummary(run results.Run) RunSummary {
	folder := run.Folder
	if rel, err := filepath.Rel(s.resultsFolder, run.Folder); err == nil {
		folder = filepath.ToSlash(rel)
	}

	return RunSummary{
		ID:          run.Stats.ID,
		Pair:        run.Stats.Pair.String(),
		Timestamp:   run.Stats.Timestamp,
		Folder:      folder,
		TotalReturn: run.Stats.Performance.TotalReturn,
		MaxDrawdown: run.Stats.Performance.MaxDrawdown,
		NumTrades:   run.Stats.TradeResult.NumberOfTrades,
		TotalPnL:    run.Stats.TradePnl.TotalPnL,
	}
}
