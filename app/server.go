package app

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"draftpad/pkg/aitools"
	"draftpad/pkg/collab"
	"draftpad/pkg/config"
	"draftpad/pkg/handlers"
	"draftpad/pkg/share"
	"draftpad/pkg/store"
	"draftpad/pkg/version"
)

// Server represents the application server.
type Server struct {
	router      *mux.Router
	roomManager *collab.RoomManager
	handlers    *handlers.Handlers
	docStore    store.IDocumentStore
	config      *config.Config
}

// NewServer wires the full application: one Postgres pool shared by the
// document, version and share repositories, the room manager over the
// document store, and the HTTP/WS surface on top. The AI edit service
// is optional; pass nil to run without it.
func NewServer(ai aitools.EditService) *Server {
	cfg := config.Load()

	docStore, err := store.NewPostgresDocumentStore(cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	versions := version.NewStore(docStore.DB())
	shares := share.NewRepo(docStore.DB())
	roomManager := collab.NewRoomManager(docStore)

	h := handlers.NewHandlers(roomManager, docStore, versions, shares, ai)

	r := mux.NewRouter()

	// WebSocket endpoint for real-time collaboration
	r.HandleFunc("/ws/{documentId}", h.HandleWebSocket)

	// Documents
	r.HandleFunc("/api/documents", h.CreateDocument).Methods("POST")
	r.HandleFunc("/api/documents", h.ListDocuments).Methods("GET")
	r.HandleFunc("/api/documents/{id}", h.GetDocument).Methods("GET")
	r.HandleFunc("/api/documents/{id}", h.UpdateDocument).Methods("PATCH")
	r.HandleFunc("/api/documents/{id}", h.DeleteDocument).Methods("DELETE")
	r.HandleFunc("/api/documents/{id}/rename", h.RenameDocument).Methods("POST")

	// Versions
	r.HandleFunc("/api/documents/{id}/versions", h.ListVersions).Methods("GET")
	r.HandleFunc("/api/documents/{id}/versions", h.CreateVersion).Methods("POST")
	r.HandleFunc("/api/documents/{id}/versions/{versionId}/restore", h.RestoreVersion).Methods("POST")
	r.HandleFunc("/api/documents/{id}/diff", h.DiffVersions).Methods("GET")
	r.HandleFunc("/api/versions/{versionId}", h.GetVersion).Methods("GET")

	// Sharing
	r.HandleFunc("/api/documents/{id}/share", h.CreateShare).Methods("POST")
	r.HandleFunc("/api/share/{token}", h.ResolveShare).Methods("GET")
	r.HandleFunc("/api/share/{token}", h.RevokeShare).Methods("DELETE")

	// AI editing
	r.HandleFunc("/api/documents/{id}/ai/chat", h.AIChat).Methods("POST")
	r.HandleFunc("/api/documents/{id}/ai/apply", h.ApplyAITool).Methods("POST")

	// Presence
	r.HandleFunc("/api/documents/{documentId}/users", h.GetRoomUsers).Methods("GET")

	return &Server{
		router:      r,
		roomManager: roomManager,
		handlers:    h,
		docStore:    docStore,
		config:      cfg,
	}
}

// Start starts the server.
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = s.config.GetServerAddr()
	}
	log.Printf("Starting draftpad server on %s", addr)
	// Wrap the router with a top-level CORS middleware so that
	// preflight (OPTIONS) requests are handled before mux does
	// method-based matching (which can otherwise return 405).
	return http.ListenAndServe(addr, corsMiddleware(s.router))
}

// corsMiddleware handles CORS headers and responds to preflight requests
// at the outer layer so they don't get rejected by method-restricted routes.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			// Reflect the origin for stricter CORS (avoids some browser issues with credentials)
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")

		// If the browser asked for specific headers, echo them back; otherwise allow common headers
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		w.Header().Set("Access-Control-Max-Age", "600")
		w.Header().Add("Vary", "Origin")
		w.Header().Add("Vary", "Access-Control-Request-Headers")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Close closes the server and database connections.
func (s *Server) Close() error {
	if postgresStore, ok := s.docStore.(*store.PostgresDocumentStore); ok {
		return postgresStore.Close()
	}
	return nil
}
