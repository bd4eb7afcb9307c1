package main

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"remindash-server/handlers"
	"remindash-server/middleware"
	"remindash-server/store"
)

func main() {
	// Initialize store
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./remindash.db"
	}

	s, err := store.New(dbPath)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer s.Close()

	// Initialize WebSocket hub
	hub := handlers.NewHub(s)
	go hub.Run()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(s)
	serverHandler := handlers.NewServerHandler(s, hub)
	reminderHandler := handlers.NewReminderHandler(s, hub)
	notificationHandler := handlers.NewNotificationHandler(s)
	logHandler := handlers.NewLogHandler(s, hub)

	// Start the occurrence sweeper that keeps the missed list current
	reminderHandler.StartOccurrenceSweeper(30 * time.Second)

	// Create router
	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/ws", hub.HandleWebSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Protected routes (auth required)
	mux.HandleFunc("GET /api/auth/me", withAuth(authHandler.Me))
	mux.HandleFunc("GET /api/auth/status", withAuth(authHandler.Status))

	// Servers
	mux.HandleFunc("GET /api/servers", withAuth(serverHandler.List))
	mux.HandleFunc("PUT /api/servers/{id}/settings", withAuth(serverHandler.UpdateSettings))
	mux.HandleFunc("PUT /api/servers/{id}/password", withAuth(serverHandler.SetPassword))
	mux.HandleFunc("GET /api/servers/{id}/password-status", withAuth(serverHandler.PasswordStatus))
	mux.HandleFunc("POST /api/servers/{id}/verify-password", withAuth(serverHandler.VerifyPassword))
	mux.HandleFunc("GET /api/servers/{id}/boss-reminders", withAuth(reminderHandler.BossList))

	// Reminders
	mux.HandleFunc("GET /api/reminders/{serverId}", withAuth(reminderHandler.List))
	mux.HandleFunc("POST /api/reminders/{serverId}", withAuth(reminderHandler.Create))
	mux.HandleFunc("PUT /api/reminders/{id}", withAuth(reminderHandler.Update))
	mux.HandleFunc("PUT /api/reminders/{id}/status", withAuth(reminderHandler.UpdateStatus))
	mux.HandleFunc("PUT /api/reminders/{id}/adjust-time", withAuth(reminderHandler.AdjustTime))
	mux.HandleFunc("DELETE /api/reminders/{id}", withAuth(reminderHandler.Delete))

	// Missed notifications
	mux.HandleFunc("GET /api/missed-notifications/{serverId}", withAuth(notificationHandler.List))
	mux.HandleFunc("PUT /api/missed-notifications/{id}/acknowledge", withAuth(notificationHandler.Acknowledge))

	// Action logs
	mux.HandleFunc("GET /api/logs/{serverId}", withAuth(logHandler.List))
	mux.HandleFunc("POST /api/logs/{id}/restore", withAuth(logHandler.Restore))

	// CORS wrapper
	handler := corsMiddleware(mux)

	// Get port
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Remindash server starting on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}

// withAuth wraps a handler with authentication
func withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
			return
		}

		claims, err := middleware.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		ctx = middleware.SetUserID(ctx, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+handlers.WriteTokenHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
