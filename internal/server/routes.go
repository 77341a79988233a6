package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket routes - live job progress
	mux.HandleFunc("/ws/jobs", s.app.WSHandler.HandleWebSocket)
	mux.HandleFunc("/ws/jobs/", s.app.WSHandler.HandleWebSocket)

	// API routes - async pipelines (job creation)
	mux.HandleFunc("/api/ingest/topic", s.app.JobHandler.CreateTopicIngestionHandler)
	mux.HandleFunc("/api/research/topic", s.app.JobHandler.CreateTopicResearchHandler)

	// API routes - synchronous ingestion
	mux.HandleFunc("/api/ingest/rss", s.app.IngestHandler.IngestFeedHandler)
	mux.HandleFunc("/api/ingest/youtube", s.app.IngestHandler.IngestVideoHandler)

	// API routes - jobs
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // /{id} and /{id}/status

	// API routes - articles
	mux.HandleFunc("/api/articles", s.app.ArticleHandler.ListArticlesHandler)
	mux.HandleFunc("/api/articles/", s.handleArticleRoutes) // /{id} and /{id}/related

	// API routes - embeddings
	mux.HandleFunc("/api/embeddings/generate-all", s.app.EmbeddingHandler.GenerateAllHandler)
	mux.HandleFunc("/api/embeddings/connections", s.app.EmbeddingHandler.ConnectionsHandler)
	mux.HandleFunc("/api/embeddings/stats", s.app.EmbeddingHandler.StatsHandler)

	// API routes - digest
	mux.HandleFunc("/api/digest/send", s.app.DigestHandler.SendHandler)

	// API routes - system
	mux.HandleFunc("/api/ws/stats", s.app.WSHandler.StatsHandler)
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", notFoundHandler)

	return mux
}

// handleJobRoutes routes /api/jobs/{id} requests
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/status") {
		s.app.JobHandler.GetJobStatusHandler(w, r)
		return
	}

	RouteByMethod(w, r, MethodRouter{
		http.MethodGet:    s.app.JobHandler.GetJobHandler,
		http.MethodDelete: s.app.JobHandler.DeleteJobHandler,
	})
}

// handleArticleRoutes routes /api/articles/{id} requests
func (s *Server) handleArticleRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/related") {
		s.app.ArticleHandler.GetRelatedHandler(w, r)
		return
	}

	RouteByMethod(w, r, MethodRouter{
		http.MethodGet:    s.app.ArticleHandler.GetArticleHandler,
		http.MethodDelete: s.app.ArticleHandler.DeleteArticleHandler,
	})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Not found", http.StatusNotFound)
}
