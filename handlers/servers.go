package handlers

import (
	"encoding/json"
	"net/http"

	"remindash-server/middleware"
	"remindash-server/models"
	"remindash-server/store"
)

type ServerHandler struct {
	store *store.Store
	hub   *Hub
}

func NewServerHandler(s *store.Store, h *Hub) *ServerHandler {
	return &ServerHandler{store: s, hub: h}
}

func (h *ServerHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	servers, err := h.store.GetServersForUser(userID)
	if err != nil {
		http.Error(w, "Failed to fetch servers", http.StatusInternalServerError)
		return
	}

	if servers == nil {
		servers = []models.ServerWithRole{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(servers)
}

func (h *ServerHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("id")

	perms := resolvePermissions(h.store, r, serverID)
	if !perms.CanManageServerSettings {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req models.ServerSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	serverType := models.ServerType(req.ServerType)
	if req.ServerType == "" {
		serverType = models.ServerTypeNormal
	}
	if !serverType.IsValid() {
		http.Error(w, "Invalid server type", http.StatusBadRequest)
		return
	}

	if err := h.store.UpdateServerSettings(serverID, req.CustomName, req.CustomIcon, serverType); err != nil {
		http.Error(w, "Failed to update settings", http.StatusInternalServerError)
		return
	}

	server, err := h.store.GetServer(serverID)
	if err != nil {
		http.Error(w, "Server not found", http.StatusNotFound)
		return
	}

	h.hub.BroadcastToServer(serverID, models.WSMessage{
		Type:    models.WSTypeServerUpdated,
		Payload: server,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(server)
}

func (h *ServerHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("id")

	perms := resolvePermissions(h.store, r, serverID)
	if !perms.CanManageServerSettings {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req models.SetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.SetServerPassword(serverID, req.Password); err != nil {
		http.Error(w, "Failed to set password", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
}

func (h *ServerHandler) PasswordStatus(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("id")
	userID := middleware.GetUserID(r)

	if _, err := h.store.GetMemberRole(serverID, userID); err != nil {
		http.Error(w, "Server not found", http.StatusNotFound)
		return
	}

	hasPassword, err := h.store.ServerHasPassword(serverID)
	if err != nil {
		http.Error(w, "Server not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.PasswordStatusResponse{HasPassword: hasPassword})
}

// VerifyPassword exchanges the server's write password for a write
// credential. Servers without a password accept the empty password, which
// is how the dashboard silently unlocks them for supporters.
func (h *ServerHandler) VerifyPassword(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("id")
	userID := middleware.GetUserID(r)

	if _, err := h.store.GetMemberRole(serverID, userID); err != nil {
		http.Error(w, "Server not found", http.StatusNotFound)
		return
	}

	var req models.VerifyPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ok, err := h.store.VerifyServerPassword(serverID, req.Password)
	if err != nil {
		http.Error(w, "Server not found", http.StatusNotFound)
		return
	}
	if !ok {
		http.Error(w, "Invalid password", http.StatusUnauthorized)
		return
	}

	token, err := middleware.GenerateWriteToken(userID, serverID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.WriteTokenResponse{WriteToken: token})
}
