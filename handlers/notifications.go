package handlers

import (
	"encoding/json"
	"net/http"

	"remindash-server/models"
	"remindash-server/store"
)

type NotificationHandler struct {
	store *store.Store
}

func NewNotificationHandler(s *store.Store) *NotificationHandler {
	return &NotificationHandler{store: s}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("serverId")

	perms := resolvePermissions(h.store, r, serverID)
	if !perms.CanViewLogs {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	notifications, err := h.store.GetMissedNotifications(serverID)
	if err != nil {
		http.Error(w, "Failed to fetch notifications", http.StatusInternalServerError)
		return
	}

	if notifications == nil {
		notifications = []models.MissedNotification{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(notifications)
}

func (h *NotificationHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	notificationID := r.PathValue("id")

	notification, err := h.store.GetMissedNotification(notificationID)
	if err != nil {
		http.Error(w, "Notification not found", http.StatusNotFound)
		return
	}

	perms := resolvePermissions(h.store, r, notification.ServerID)
	if !perms.CanViewLogs {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := h.store.AcknowledgeMissedNotification(notificationID); err != nil {
		http.Error(w, "Failed to acknowledge notification", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "acknowledged"})
}
