package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"remindash-server/middleware"
	"remindash-server/models"
	"remindash-server/store"
)

type LogHandler struct {
	store *store.Store
	hub   *Hub
}

func NewLogHandler(s *store.Store, h *Hub) *LogHandler {
	return &LogHandler{store: s, hub: h}
}

func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("serverId")

	perms := resolvePermissions(h.store, r, serverID)
	if !perms.CanViewLogs {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.store.GetActionLogs(serverID, limit)
	if err != nil {
		http.Error(w, "Failed to fetch logs", http.StatusInternalServerError)
		return
	}

	if logs == nil {
		logs = []models.ActionLog{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}

// Restore recreates the reminder captured in a log entry's snapshot. The
// restored copy gets a fresh id so it never collides with a live reminder.
func (h *LogHandler) Restore(w http.ResponseWriter, r *http.Request) {
	logID := r.PathValue("id")
	userID := middleware.GetUserID(r)

	entry, err := h.store.GetActionLog(logID)
	if err != nil {
		http.Error(w, "Log entry not found", http.StatusNotFound)
		return
	}

	perms := resolvePermissions(h.store, r, entry.ServerID)
	if !perms.CanManipulateLogs {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if entry.Snapshot == "" {
		http.Error(w, "Log entry has no snapshot", http.StatusConflict)
		return
	}

	var rem models.Reminder
	if err := json.Unmarshal([]byte(entry.Snapshot), &rem); err != nil {
		http.Error(w, "Log entry snapshot is corrupt", http.StatusConflict)
		return
	}

	rem.ID = ""
	rem.ServerID = entry.ServerID
	rem.CreatedBy = userID

	if err := rem.Validate(); err != nil {
		http.Error(w, "Log entry snapshot is corrupt", http.StatusConflict)
		return
	}

	restored, err := h.store.CreateReminder(&rem)
	if err != nil {
		http.Error(w, "Failed to restore reminder", http.StatusInternalServerError)
		return
	}

	snapshot, _ := json.Marshal(restored)
	if _, err := h.store.AppendActionLog(entry.ServerID, userID, models.ActionRestore, restored.ID, string(snapshot)); err != nil {
		log.Printf("Failed to append restore log for reminder %s: %v", restored.ID, err)
	}

	h.hub.BroadcastToServer(entry.ServerID, models.WSMessage{
		Type:    models.WSTypeReminderCreated,
		Payload: restored,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(restored)
}
