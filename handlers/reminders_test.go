package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindash-server/middleware"
	"remindash-server/models"
	"remindash-server/store"
)

type fixture struct {
	store    *store.Store
	hub      *Hub
	reminder *ReminderHandler
	server   *models.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	hub := NewHub(s)
	srv, err := s.CreateServer("guild-1", "Raid Guild", "")
	require.NoError(t, err)

	return &fixture{
		store:    s,
		hub:      hub,
		reminder: NewReminderHandler(s, hub),
		server:   srv,
	}
}

func (f *fixture) addUser(t *testing.T, username string, role models.UserRole, member models.MemberRole) *models.User {
	t.Helper()
	user, err := f.store.CreateUser(username, username, "secret1", role)
	require.NoError(t, err)
	if member != "" {
		require.NoError(t, f.store.AddServerMember(f.server.ID, user.ID, member))
	}
	return user
}

// authedRequest builds a request already carrying the user identity the
// auth middleware would have attached.
func authedRequest(method, target, userID string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	return r.WithContext(middleware.SetUserID(r.Context(), userID))
}

func createRequestBody() models.CreateReminderRequest {
	return models.CreateReminderRequest{
		Message:   "Boss spawns {{offset}}",
		ChannelID: "chan-1",
		Channel:   "raids",
		StartTime: "2030-01-01T10:00:00Z",
		Recurrence: models.Recurrence{
			Type:  models.RecurrenceInterval,
			Hours: 20,
		},
		Kind: "boss",
	}
}

func TestCreateReminderAsOwnerAdmin(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner", models.RoleOwner, models.MemberAdmin)

	r := authedRequest("POST", "/api/reminders/guild-1", owner.ID, createRequestBody())
	r.SetPathValue("serverId", f.server.ID)
	w := httptest.NewRecorder()
	f.reminder.Create(w, r)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var view models.ReminderView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, models.KindBoss, view.Kind)
	assert.Equal(t, "notifies every 20 hours", view.RecurrenceText)
	assert.NotEmpty(t, view.NextOccurrence)

	// The creation is audited.
	logs, err := f.store.GetActionLogs(f.server.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionCreate, logs[0].Action)
}

func TestCreateReminderForbiddenForLockedSupporter(t *testing.T) {
	f := newFixture(t)
	supporter := f.addUser(t, "supporter", models.RoleSupporter, models.MemberAdmin)

	r := authedRequest("POST", "/api/reminders/guild-1", supporter.ID, createRequestBody())
	r.SetPathValue("serverId", f.server.ID)
	w := httptest.NewRecorder()
	f.reminder.Create(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSupporterWithWriteTokenCanEdit(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner", models.RoleOwner, models.MemberAdmin)
	supporter := f.addUser(t, "supporter", models.RoleSupporter, models.MemberAdmin)

	rem := &models.Reminder{
		ServerID: f.server.ID, ChannelID: "c", Message: "m", StartTime: "2030-01-01T10:00:00Z",
		Recurrence: models.Recurrence{Type: models.RecurrenceDaily},
		Status:     models.StatusActive, Kind: models.KindNormal, CreatedBy: owner.ID,
	}
	created, err := f.store.CreateReminder(rem)
	require.NoError(t, err)

	body := createRequestBody()
	body.Message = "edited by supporter"

	// Without a credential the edit is rejected.
	r := authedRequest("PUT", "/api/reminders/"+created.ID, supporter.ID, body)
	r.SetPathValue("id", created.ID)
	w := httptest.NewRecorder()
	f.reminder.Update(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// With one it goes through.
	token, err := middleware.GenerateWriteToken(supporter.ID, f.server.ID)
	require.NoError(t, err)

	r = authedRequest("PUT", "/api/reminders/"+created.ID, supporter.ID, body)
	r.SetPathValue("id", created.ID)
	r.Header.Set(WriteTokenHeader, token)
	w = httptest.NewRecorder()
	f.reminder.Update(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := f.store.GetReminder(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited by supporter", got.Message)
}

func TestWriteTokenForOtherServerIsRejected(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner", models.RoleOwner, models.MemberAdmin)
	supporter := f.addUser(t, "supporter", models.RoleSupporter, models.MemberAdmin)

	rem := &models.Reminder{
		ServerID: f.server.ID, ChannelID: "c", Message: "m", StartTime: "2030-01-01T10:00:00Z",
		Recurrence: models.Recurrence{Type: models.RecurrenceDaily},
		Status:     models.StatusActive, Kind: models.KindNormal, CreatedBy: owner.ID,
	}
	created, err := f.store.CreateReminder(rem)
	require.NoError(t, err)

	token, err := middleware.GenerateWriteToken(supporter.ID, "some-other-guild")
	require.NoError(t, err)

	r := authedRequest("DELETE", "/api/reminders/"+created.ID, supporter.ID, nil)
	r.SetPathValue("id", created.ID)
	r.Header.Set(WriteTokenHeader, token)
	w := httptest.NewRecorder()
	f.reminder.Delete(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListRequiresMembership(t *testing.T) {
	f := newFixture(t)
	stranger := f.addUser(t, "stranger", models.RoleOwner, "")

	r := authedRequest("GET", "/api/reminders/guild-1", stranger.ID, nil)
	r.SetPathValue("serverId", f.server.ID)
	w := httptest.NewRecorder()
	f.reminder.List(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListProjectsPausedAndBrokenReminders(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner", models.RoleOwner, models.MemberAdmin)

	paused := &models.Reminder{
		ServerID: f.server.ID, ChannelID: "c", Message: "paused one", StartTime: "2030-01-01T10:00:00Z",
		Recurrence: models.Recurrence{Type: models.RecurrenceDaily},
		Status:     models.StatusPaused, Kind: models.KindNormal, CreatedBy: owner.ID,
	}
	broken := &models.Reminder{
		ServerID: f.server.ID, ChannelID: "c", Message: "broken one", StartTime: "not-a-date",
		Recurrence: models.Recurrence{Type: models.RecurrenceDaily},
		Status:     models.StatusActive, Kind: models.KindNormal, CreatedBy: owner.ID,
	}
	_, err := f.store.CreateReminder(paused)
	require.NoError(t, err)
	_, err = f.store.CreateReminder(broken)
	require.NoError(t, err)

	r := authedRequest("GET", "/api/reminders/guild-1", owner.ID, nil)
	r.SetPathValue("serverId", f.server.ID)
	w := httptest.NewRecorder()
	f.reminder.List(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var views []models.ReminderView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 2)

	byMessage := map[string]models.ReminderView{}
	for _, v := range views {
		byMessage[v.Message] = v
	}
	// One bad reminder must not break the rest of the listing.
	assert.Equal(t, "paused", byMessage["paused one"].NextOccurrence)
	assert.Equal(t, "ended or misconfigured", byMessage["broken one"].NextOccurrence)
	assert.Equal(t, "date configuration error", byMessage["broken one"].RecurrenceText)
}

func TestUpdateStatusTogglesAndAudits(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner", models.RoleOwner, models.MemberAdmin)

	rem := &models.Reminder{
		ServerID: f.server.ID, ChannelID: "c", Message: "m", StartTime: "2030-01-01T10:00:00Z",
		Recurrence: models.Recurrence{Type: models.RecurrenceDaily},
		Status:     models.StatusActive, Kind: models.KindNormal, CreatedBy: owner.ID,
	}
	created, err := f.store.CreateReminder(rem)
	require.NoError(t, err)

	r := authedRequest("PUT", "/api/reminders/"+created.ID+"/status", owner.ID,
		models.UpdateStatusRequest{Status: "paused"})
	r.SetPathValue("id", created.ID)
	w := httptest.NewRecorder()
	f.reminder.UpdateStatus(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var view models.ReminderView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, models.StatusPaused, view.Status)
	assert.Equal(t, "paused", view.NextOccurrence)

	logs, err := f.store.GetActionLogs(f.server.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionPause, logs[0].Action)
}

func TestAdjustTimeShiftsStart(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner", models.RoleOwner, models.MemberAdmin)

	rem := &models.Reminder{
		ServerID: f.server.ID, ChannelID: "c", Message: "boss", StartTime: "2030-01-01T10:00:00Z",
		Recurrence: models.Recurrence{Type: models.RecurrenceInterval, Hours: 20},
		Status:     models.StatusActive, Kind: models.KindBoss, CreatedBy: owner.ID,
	}
	created, err := f.store.CreateReminder(rem)
	require.NoError(t, err)

	r := authedRequest("PUT", "/api/reminders/"+created.ID+"/adjust-time", owner.ID,
		models.AdjustTimeRequest{Minutes: -15})
	r.SetPathValue("id", created.ID)
	w := httptest.NewRecorder()
	f.reminder.AdjustTime(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := f.store.GetReminder(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2030-01-01T09:45:00Z", got.StartTime)
}

func TestBossListStripsTokensAndFiltersKind(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner", models.RoleOwner, models.MemberAdmin)

	boss := &models.Reminder{
		ServerID: f.server.ID, ChannelID: "c", Message: "Hydra up {{offset}}", StartTime: "2030-01-01T10:00:00Z",
		Recurrence: models.Recurrence{Type: models.RecurrenceInterval, Hours: 20},
		Status:     models.StatusActive, Kind: models.KindBoss, CreatedBy: owner.ID,
	}
	normal := &models.Reminder{
		ServerID: f.server.ID, ChannelID: "c", Message: "daily tip", StartTime: "2030-01-01T10:00:00Z",
		Recurrence: models.Recurrence{Type: models.RecurrenceDaily},
		Status:     models.StatusActive, Kind: models.KindNormal, CreatedBy: owner.ID,
	}
	_, err := f.store.CreateReminder(boss)
	require.NoError(t, err)
	_, err = f.store.CreateReminder(normal)
	require.NoError(t, err)

	r := authedRequest("GET", "/api/servers/guild-1/boss-reminders", owner.ID, nil)
	r.SetPathValue("id", f.server.ID)
	w := httptest.NewRecorder()
	f.reminder.BossList(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var views []models.ReminderView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "Hydra up", views[0].Message)
}

func TestDeleteSnapshotsForRestore(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner", models.RoleOwner, models.MemberAdmin)

	rem := &models.Reminder{
		ServerID: f.server.ID, ChannelID: "c", Message: "precious", StartTime: "2030-01-01T10:00:00Z",
		Recurrence: models.Recurrence{Type: models.RecurrenceDaily},
		Status:     models.StatusActive, Kind: models.KindNormal, CreatedBy: owner.ID,
	}
	created, err := f.store.CreateReminder(rem)
	require.NoError(t, err)

	r := authedRequest("DELETE", "/api/reminders/"+created.ID, owner.ID, nil)
	r.SetPathValue("id", created.ID)
	w := httptest.NewRecorder()
	f.reminder.Delete(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	logs, err := f.store.GetActionLogs(f.server.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	var snapshot models.Reminder
	require.NoError(t, json.Unmarshal([]byte(logs[0].Snapshot), &snapshot))
	assert.Equal(t, "precious", snapshot.Message)
}

func TestSweepRecordsMissedOccurrence(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner", models.RoleOwner, models.MemberAdmin)

	rem := &models.Reminder{
		ServerID: f.server.ID, ChannelID: "c", Channel: "raids",
		Message: "Boss spawns {{offset}}", StartTime: "2020-01-01T10:00:00Z",
		Recurrence: models.Recurrence{Type: models.RecurrenceNone},
		Status:     models.StatusActive, Kind: models.KindNormal, CreatedBy: owner.ID,
	}
	_, err := f.store.CreateReminder(rem)
	require.NoError(t, err)

	// A one-shot whose start has passed gets recorded once and retired.
	// The watermark is the creation time, so make the sweep look ahead.
	// Nothing fires: start time predates creation, the occurrence is gone.
	f.reminder.sweepOccurrences(time.Now())
	missed, err := f.store.GetMissedNotifications(f.server.ID)
	require.NoError(t, err)
	assert.Empty(t, missed)

	future := &models.Reminder{
		ServerID: f.server.ID, ChannelID: "c", Channel: "raids",
		Message: "Daily tip {{all}}", StartTime: "2020-01-02T10:00:00Z",
		Recurrence: models.Recurrence{Type: models.RecurrenceDaily},
		Status:     models.StatusActive, Kind: models.KindNormal, CreatedBy: owner.ID,
	}
	created, err := f.store.CreateReminder(future)
	require.NoError(t, err)

	// The daily reminder's next occurrence after creation is already in
	// the past relative to a sweep far in the future.
	f.reminder.sweepOccurrences(time.Now().Add(48 * time.Hour))

	missed, err = f.store.GetMissedNotifications(f.server.ID)
	require.NoError(t, err)
	require.Len(t, missed, 1)
	assert.Equal(t, "Daily tip @everyone", missed[0].ReminderMessage)
	assert.Equal(t, "raids", missed[0].ChannelName)

	watermarked, err := f.store.GetActiveReminders()
	require.NoError(t, err)
	for _, rw := range watermarked {
		if rw.Reminder.ID == created.ID {
			require.NotNil(t, rw.LastFiredAt)
		}
	}
}

func TestPausedRemindersAreNotSwept(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner", models.RoleOwner, models.MemberAdmin)

	rem := &models.Reminder{
		ServerID: f.server.ID, ChannelID: "c", Message: "m", StartTime: "2020-01-01T10:00:00Z",
		Recurrence: models.Recurrence{Type: models.RecurrenceDaily},
		Status:     models.StatusPaused, Kind: models.KindNormal, CreatedBy: owner.ID,
	}
	_, err := f.store.CreateReminder(rem)
	require.NoError(t, err)

	f.reminder.sweepOccurrences(time.Now().Add(48 * time.Hour))

	missed, err := f.store.GetMissedNotifications(f.server.ID)
	require.NoError(t, err)
	assert.Empty(t, missed)
}
