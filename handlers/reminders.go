package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"remindash-server/middleware"
	"remindash-server/models"
	"remindash-server/render"
	"remindash-server/schedule"
	"remindash-server/store"
)

type ReminderHandler struct {
	store *store.Store
	hub   *Hub
}

func NewReminderHandler(s *store.Store, h *Hub) *ReminderHandler {
	return &ReminderHandler{store: s, hub: h}
}

func toView(rem models.Reminder, now time.Time) models.ReminderView {
	return models.ReminderView{
		Reminder:       rem,
		RecurrenceText: schedule.Describe(rem),
		NextOccurrence: schedule.FormatNext(rem, now),
	}
}

func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("serverId")
	userID := middleware.GetUserID(r)

	// Any member may read the list; membership doubles as the read gate.
	if _, err := h.store.GetMemberRole(serverID, userID); err != nil {
		http.Error(w, "Server not found", http.StatusNotFound)
		return
	}

	reminders, err := h.store.GetRemindersForServer(serverID)
	if err != nil {
		http.Error(w, "Failed to fetch reminders", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	views := make([]models.ReminderView, 0, len(reminders))
	for _, rem := range reminders {
		views = append(views, toView(rem, now))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("serverId")
	userID := middleware.GetUserID(r)

	perms := resolvePermissions(h.store, r, serverID)
	if !perms.CanCreate && !perms.CanEdit {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req models.CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rem := models.Reminder{
		ServerID:            serverID,
		Message:             req.Message,
		ChannelID:           req.ChannelID,
		Channel:             req.Channel,
		StartTime:           req.StartTime,
		Recurrence:          req.Recurrence,
		Status:              models.StatusActive,
		Kind:                models.KindNormal,
		NotificationOffsets: req.NotificationOffsets,
		SelectedEmojis:      req.SelectedEmojis,
		HideNextTime:        req.HideNextTime,
		CreatedBy:           userID,
	}
	if req.Status != "" {
		rem.Status = models.ReminderStatus(req.Status)
	}
	if req.Kind != "" {
		rem.Kind = models.ReminderKind(req.Kind)
	}

	if err := rem.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := schedule.ParseStartTime(rem.StartTime); err != nil {
		http.Error(w, "Invalid start time", http.StatusBadRequest)
		return
	}

	created, err := h.store.CreateReminder(&rem)
	if err != nil {
		http.Error(w, "Failed to create reminder", http.StatusInternalServerError)
		return
	}

	h.logAction(serverID, userID, models.ActionCreate, created)
	h.hub.BroadcastToServer(serverID, models.WSMessage{
		Type:    models.WSTypeReminderCreated,
		Payload: created,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toView(*created, time.Now()))
}

func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	reminderID := r.PathValue("id")
	userID := middleware.GetUserID(r)

	existing, err := h.store.GetReminder(reminderID)
	if err != nil {
		http.Error(w, "Reminder not found", http.StatusNotFound)
		return
	}

	perms := resolvePermissions(h.store, r, existing.ServerID)
	if !perms.CanEdit {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req models.CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Snapshot the previous state so the action log can restore it.
	h.logAction(existing.ServerID, userID, models.ActionUpdate, existing)

	existing.Message = req.Message
	existing.ChannelID = req.ChannelID
	existing.Channel = req.Channel
	existing.StartTime = req.StartTime
	existing.Recurrence = req.Recurrence
	existing.NotificationOffsets = req.NotificationOffsets
	existing.SelectedEmojis = req.SelectedEmojis
	existing.HideNextTime = req.HideNextTime
	if req.Status != "" {
		existing.Status = models.ReminderStatus(req.Status)
	}
	if req.Kind != "" {
		existing.Kind = models.ReminderKind(req.Kind)
	}

	if err := existing.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := schedule.ParseStartTime(existing.StartTime); err != nil {
		http.Error(w, "Invalid start time", http.StatusBadRequest)
		return
	}

	if err := h.store.UpdateReminder(existing); err != nil {
		http.Error(w, "Failed to update reminder", http.StatusInternalServerError)
		return
	}

	h.hub.BroadcastToServer(existing.ServerID, models.WSMessage{
		Type:    models.WSTypeReminderUpdated,
		Payload: existing,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toView(*existing, time.Now()))
}

// UpdateStatus toggles between active and paused without touching the
// rest of the reminder.
func (h *ReminderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	reminderID := r.PathValue("id")
	userID := middleware.GetUserID(r)

	existing, err := h.store.GetReminder(reminderID)
	if err != nil {
		http.Error(w, "Reminder not found", http.StatusNotFound)
		return
	}

	perms := resolvePermissions(h.store, r, existing.ServerID)
	if !perms.CanEdit {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req models.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	status := models.ReminderStatus(req.Status)
	if !status.IsValid() {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	if err := h.store.UpdateReminderStatus(reminderID, status); err != nil {
		http.Error(w, "Failed to update status", http.StatusInternalServerError)
		return
	}
	existing.Status = status

	action := models.ActionPause
	if status == models.StatusActive {
		action = models.ActionResume
	}
	h.logAction(existing.ServerID, userID, action, existing)

	h.hub.BroadcastToServer(existing.ServerID, models.WSMessage{
		Type:    models.WSTypeReminderUpdated,
		Payload: existing,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toView(*existing, time.Now()))
}

// AdjustTime shifts the start time by a signed number of minutes. The raid
// view uses this to nudge boss timers after a kill.
func (h *ReminderHandler) AdjustTime(w http.ResponseWriter, r *http.Request) {
	reminderID := r.PathValue("id")
	userID := middleware.GetUserID(r)

	existing, err := h.store.GetReminder(reminderID)
	if err != nil {
		http.Error(w, "Reminder not found", http.StatusNotFound)
		return
	}

	perms := resolvePermissions(h.store, r, existing.ServerID)
	if !perms.CanEdit {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req models.AdjustTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	start, err := schedule.ParseStartTime(existing.StartTime)
	if err != nil {
		http.Error(w, "Reminder has an invalid start time", http.StatusConflict)
		return
	}

	h.logAction(existing.ServerID, userID, models.ActionAdjustTime, existing)

	existing.StartTime = start.Add(time.Duration(req.Minutes) * time.Minute).Format(time.RFC3339)
	if err := h.store.UpdateReminder(existing); err != nil {
		http.Error(w, "Failed to update reminder", http.StatusInternalServerError)
		return
	}

	h.hub.BroadcastToServer(existing.ServerID, models.WSMessage{
		Type:    models.WSTypeReminderUpdated,
		Payload: existing,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toView(*existing, time.Now()))
}

func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	reminderID := r.PathValue("id")
	userID := middleware.GetUserID(r)

	existing, err := h.store.GetReminder(reminderID)
	if err != nil {
		http.Error(w, "Reminder not found", http.StatusNotFound)
		return
	}

	perms := resolvePermissions(h.store, r, existing.ServerID)
	if !perms.CanEdit {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	// Snapshot before deleting so the log can restore it.
	h.logAction(existing.ServerID, userID, models.ActionDelete, existing)

	if err := h.store.DeleteReminder(reminderID); err != nil {
		http.Error(w, "Failed to delete reminder", http.StatusInternalServerError)
		return
	}

	h.hub.BroadcastToServer(existing.ServerID, models.WSMessage{
		Type:    models.WSTypeReminderDeleted,
		Payload: map[string]string{"id": reminderID},
	})

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}

// BossList is the raid view: boss-kind reminders with their next spawn,
// messages stripped of placeholder tokens.
func (h *ReminderHandler) BossList(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("id")
	userID := middleware.GetUserID(r)

	if _, err := h.store.GetMemberRole(serverID, userID); err != nil {
		http.Error(w, "Server not found", http.StatusNotFound)
		return
	}

	reminders, err := h.store.GetBossReminders(serverID)
	if err != nil {
		http.Error(w, "Failed to fetch reminders", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	views := make([]models.ReminderView, 0, len(reminders))
	for _, rem := range reminders {
		rem.Message = render.Strip(rem.Message)
		views = append(views, toView(rem, now))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

func (h *ReminderHandler) logAction(serverID, userID, action string, rem *models.Reminder) {
	snapshot, err := json.Marshal(rem)
	if err != nil {
		log.Printf("Failed to snapshot reminder %s for action log: %v", rem.ID, err)
		snapshot = nil
	}
	if _, err := h.store.AppendActionLog(serverID, userID, action, rem.ID, string(snapshot)); err != nil {
		log.Printf("Failed to append action log for reminder %s: %v", rem.ID, err)
	}
}

// StartOccurrenceSweeper starts a goroutine that records occurrences that
// have passed without delivery. The send path lives in the bot process;
// this server only keeps the dashboard's missed list current.
func (h *ReminderHandler) StartOccurrenceSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			h.sweepOccurrences(time.Now())
		}
	}()
}

func (h *ReminderHandler) sweepOccurrences(now time.Time) {
	active, err := h.store.GetActiveReminders()
	if err != nil {
		log.Printf("Occurrence sweep failed: %v", err)
		return
	}

	for _, rw := range active {
		watermark := rw.Reminder.CreatedAt
		if rw.LastFiredAt != nil && rw.LastFiredAt.After(watermark) {
			watermark = *rw.LastFiredAt
		}

		occurrence, ok := schedule.NextOccurrence(rw.Reminder, watermark)
		if !ok || occurrence.After(now) {
			continue
		}

		message := render.Interpolate(rw.Reminder.Message, 0)
		notification, err := h.store.CreateMissedNotification(rw.Reminder.ServerID, message, rw.Reminder.Channel, occurrence)
		if err != nil {
			log.Printf("Failed to record missed occurrence for reminder %s: %v", rw.Reminder.ID, err)
			continue
		}
		if err := h.store.SetReminderLastFired(rw.Reminder.ID, occurrence); err != nil {
			log.Printf("Failed to advance watermark for reminder %s: %v", rw.Reminder.ID, err)
			continue
		}

		h.hub.BroadcastToServer(rw.Reminder.ServerID, models.WSMessage{
			Type:    models.WSTypeMissedNotification,
			Payload: notification,
		})
	}
}
