package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"remindash-server/models"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.init(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'supporter',
		avatar_url TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS servers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		icon TEXT,
		custom_name TEXT,
		custom_icon TEXT,
		server_type TEXT NOT NULL DEFAULT 'normal',
		write_password_hash TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS server_members (
		server_id TEXT NOT NULL REFERENCES servers(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		role TEXT NOT NULL DEFAULT 'member',
		joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (server_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_server_members_user ON server_members(user_id);

	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		server_id TEXT NOT NULL REFERENCES servers(id),
		channel_id TEXT NOT NULL,
		channel TEXT,
		message TEXT NOT NULL,
		start_time TEXT NOT NULL,
		recurrence_type TEXT NOT NULL,
		recurrence_days TEXT,
		recurrence_hours INTEGER DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		kind TEXT NOT NULL DEFAULT 'normal',
		notification_offsets TEXT,
		selected_emojis TEXT,
		hide_next_time BOOLEAN DEFAULT FALSE,
		last_fired_at DATETIME,
		created_by TEXT REFERENCES users(id),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_reminders_server ON reminders(server_id);
	CREATE INDEX IF NOT EXISTS idx_reminders_status ON reminders(status);

	CREATE TABLE IF NOT EXISTS missed_notifications (
		id TEXT PRIMARY KEY,
		server_id TEXT NOT NULL REFERENCES servers(id),
		reminder_message TEXT NOT NULL,
		channel_name TEXT,
		missed_at DATETIME NOT NULL,
		acknowledged BOOLEAN DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_missed_server ON missed_notifications(server_id);

	CREATE TABLE IF NOT EXISTS action_logs (
		id TEXT PRIMARY KEY,
		server_id TEXT NOT NULL REFERENCES servers(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		action TEXT NOT NULL,
		reminder_id TEXT,
		snapshot TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_action_logs_server ON action_logs(server_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// User operations

func (s *Store) CreateUser(username, displayName, password string, role models.UserRole) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
	}

	_, err = s.db.Exec(`
		INSERT INTO users (id, username, display_name, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.Username, user.DisplayName, user.PasswordHash, string(user.Role), user.CreatedAt)

	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(`
		SELECT id, username, display_name, password_hash, role, COALESCE(avatar_url, ''), created_at
		FROM users WHERE username = ?
	`, username).Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash, &user.Role, &user.AvatarURL, &user.CreatedAt)

	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUserByID(id string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(`
		SELECT id, username, display_name, password_hash, role, COALESCE(avatar_url, ''), created_at
		FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash, &user.Role, &user.AvatarURL, &user.CreatedAt)

	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) ValidatePassword(user *models.User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	return err == nil
}

// Server operations

func (s *Store) CreateServer(id, name, icon string) (*models.Server, error) {
	if id == "" {
		id = uuid.New().String()
	}
	server := &models.Server{
		ID:         id,
		Name:       name,
		Icon:       icon,
		ServerType: models.ServerTypeNormal,
		CreatedAt:  time.Now(),
	}

	_, err := s.db.Exec(`
		INSERT INTO servers (id, name, icon, server_type, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, server.ID, server.Name, server.Icon, string(server.ServerType), server.CreatedAt)

	if err != nil {
		return nil, err
	}
	return server, nil
}

func (s *Store) GetServer(id string) (*models.Server, error) {
	server := &models.Server{}
	var hash sql.NullString
	err := s.db.QueryRow(`
		SELECT id, name, COALESCE(icon, ''), COALESCE(custom_name, ''), COALESCE(custom_icon, ''),
		       server_type, write_password_hash, created_at
		FROM servers WHERE id = ?
	`, id).Scan(&server.ID, &server.Name, &server.Icon, &server.CustomName, &server.CustomIcon,
		&server.ServerType, &hash, &server.CreatedAt)

	if err != nil {
		return nil, err
	}
	server.HasPassword = hash.Valid && hash.String != ""
	return server, nil
}

func (s *Store) GetServersForUser(userID string) ([]models.ServerWithRole, error) {
	rows, err := s.db.Query(`
		SELECT sv.id, sv.name, COALESCE(sv.icon, ''), COALESCE(sv.custom_name, ''), COALESCE(sv.custom_icon, ''),
		       sv.server_type, sv.write_password_hash, sv.created_at, sm.role
		FROM servers sv
		JOIN server_members sm ON sm.server_id = sv.id
		WHERE sm.user_id = ?
		ORDER BY sv.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []models.ServerWithRole
	for rows.Next() {
		var sw models.ServerWithRole
		var hash sql.NullString
		err := rows.Scan(&sw.ID, &sw.Name, &sw.Icon, &sw.CustomName, &sw.CustomIcon,
			&sw.ServerType, &hash, &sw.CreatedAt, &sw.Role)
		if err != nil {
			return nil, err
		}
		sw.HasPassword = hash.Valid && hash.String != ""
		servers = append(servers, sw)
	}
	return servers, rows.Err()
}

func (s *Store) AddServerMember(serverID, userID string, role models.MemberRole) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO server_members (server_id, user_id, role)
		VALUES (?, ?, ?)
	`, serverID, userID, string(role))
	return err
}

// GetMemberRole returns the user's role on the server. sql.ErrNoRows means
// the user is not a member at all.
func (s *Store) GetMemberRole(serverID, userID string) (models.MemberRole, error) {
	var role models.MemberRole
	err := s.db.QueryRow(`
		SELECT role FROM server_members WHERE server_id = ? AND user_id = ?
	`, serverID, userID).Scan(&role)
	return role, err
}

func (s *Store) UpdateServerSettings(id, customName, customIcon string, serverType models.ServerType) error {
	_, err := s.db.Exec(`
		UPDATE servers SET custom_name = ?, custom_icon = ?, server_type = ? WHERE id = ?
	`, customName, customIcon, string(serverType), id)
	return err
}

// SetServerPassword hashes and stores the write password; an empty
// password clears it.
func (s *Store) SetServerPassword(id, password string) error {
	if password == "" {
		_, err := s.db.Exec("UPDATE servers SET write_password_hash = NULL WHERE id = ?", id)
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("UPDATE servers SET write_password_hash = ? WHERE id = ?", string(hash), id)
	return err
}

func (s *Store) ServerHasPassword(id string) (bool, error) {
	var hash sql.NullString
	err := s.db.QueryRow("SELECT write_password_hash FROM servers WHERE id = ?", id).Scan(&hash)
	if err != nil {
		return false, err
	}
	return hash.Valid && hash.String != "", nil
}

// VerifyServerPassword checks a candidate write password. A server with no
// password set accepts only the empty password.
func (s *Store) VerifyServerPassword(id, password string) (bool, error) {
	var hash sql.NullString
	err := s.db.QueryRow("SELECT write_password_hash FROM servers WHERE id = ?", id).Scan(&hash)
	if err != nil {
		return false, err
	}
	if !hash.Valid || hash.String == "" {
		return password == "", nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(password)) == nil, nil
}

// Reminder operations

func (s *Store) CreateReminder(rem *models.Reminder) (*models.Reminder, error) {
	if rem.ID == "" {
		rem.ID = uuid.New().String()
	}
	now := time.Now()
	rem.CreatedAt = now
	rem.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO reminders (id, server_id, channel_id, channel, message, start_time,
			recurrence_type, recurrence_days, recurrence_hours, status, kind,
			notification_offsets, selected_emojis, hide_next_time, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rem.ID, rem.ServerID, rem.ChannelID, rem.Channel, rem.Message, rem.StartTime,
		string(rem.Recurrence.Type), marshalJSON(rem.Recurrence.Days), rem.Recurrence.Hours,
		string(rem.Status), string(rem.Kind),
		marshalJSON(rem.NotificationOffsets), marshalJSON(rem.SelectedEmojis), rem.HideNextTime,
		rem.CreatedBy, rem.CreatedAt, rem.UpdatedAt)

	if err != nil {
		return nil, err
	}
	return rem, nil
}

const reminderColumns = `id, server_id, channel_id, COALESCE(channel, ''), message, start_time,
	recurrence_type, COALESCE(recurrence_days, ''), recurrence_hours, status, kind,
	COALESCE(notification_offsets, ''), COALESCE(selected_emojis, ''), hide_next_time,
	COALESCE(created_by, ''), created_at, updated_at`

func scanReminder(row interface{ Scan(...interface{}) error }) (*models.Reminder, error) {
	rem := &models.Reminder{}
	var days, offsets, emojis string
	err := row.Scan(&rem.ID, &rem.ServerID, &rem.ChannelID, &rem.Channel, &rem.Message, &rem.StartTime,
		&rem.Recurrence.Type, &days, &rem.Recurrence.Hours, &rem.Status, &rem.Kind,
		&offsets, &emojis, &rem.HideNextTime, &rem.CreatedBy, &rem.CreatedAt, &rem.UpdatedAt)
	if err != nil {
		return nil, err
	}
	unmarshalJSON(days, &rem.Recurrence.Days)
	unmarshalJSON(offsets, &rem.NotificationOffsets)
	unmarshalJSON(emojis, &rem.SelectedEmojis)
	return rem, nil
}

func (s *Store) GetReminder(id string) (*models.Reminder, error) {
	row := s.db.QueryRow("SELECT "+reminderColumns+" FROM reminders WHERE id = ?", id)
	return scanReminder(row)
}

func (s *Store) GetRemindersForServer(serverID string) ([]models.Reminder, error) {
	rows, err := s.db.Query(`
		SELECT `+reminderColumns+` FROM reminders WHERE server_id = ? ORDER BY created_at
	`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, *rem)
	}
	return reminders, rows.Err()
}

func (s *Store) GetBossReminders(serverID string) ([]models.Reminder, error) {
	rows, err := s.db.Query(`
		SELECT `+reminderColumns+` FROM reminders
		WHERE server_id = ? AND kind = ? ORDER BY created_at
	`, serverID, string(models.KindBoss))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, *rem)
	}
	return reminders, rows.Err()
}

func (s *Store) UpdateReminder(rem *models.Reminder) error {
	rem.UpdatedAt = time.Now()
	_, err := s.db.Exec(`
		UPDATE reminders SET channel_id = ?, channel = ?, message = ?, start_time = ?,
			recurrence_type = ?, recurrence_days = ?, recurrence_hours = ?, status = ?, kind = ?,
			notification_offsets = ?, selected_emojis = ?, hide_next_time = ?, updated_at = ?
		WHERE id = ?
	`, rem.ChannelID, rem.Channel, rem.Message, rem.StartTime,
		string(rem.Recurrence.Type), marshalJSON(rem.Recurrence.Days), rem.Recurrence.Hours,
		string(rem.Status), string(rem.Kind),
		marshalJSON(rem.NotificationOffsets), marshalJSON(rem.SelectedEmojis), rem.HideNextTime,
		rem.UpdatedAt, rem.ID)
	return err
}

func (s *Store) UpdateReminderStatus(id string, status models.ReminderStatus) error {
	_, err := s.db.Exec("UPDATE reminders SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now(), id)
	return err
}

func (s *Store) DeleteReminder(id string) error {
	_, err := s.db.Exec("DELETE FROM reminders WHERE id = ?", id)
	return err
}

// ReminderWatermark pairs a reminder with the sweeper's last-fired
// watermark, nil before the first recorded occurrence.
type ReminderWatermark struct {
	Reminder    models.Reminder
	LastFiredAt *time.Time
}

func (s *Store) GetActiveReminders() ([]ReminderWatermark, error) {
	rows, err := s.db.Query(`
		SELECT `+reminderColumns+`, last_fired_at FROM reminders WHERE status = ?
	`, string(models.StatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReminderWatermark
	for rows.Next() {
		var rw ReminderWatermark
		rem := &rw.Reminder
		var days, offsets, emojis string
		err := rows.Scan(&rem.ID, &rem.ServerID, &rem.ChannelID, &rem.Channel, &rem.Message, &rem.StartTime,
			&rem.Recurrence.Type, &days, &rem.Recurrence.Hours, &rem.Status, &rem.Kind,
			&offsets, &emojis, &rem.HideNextTime, &rem.CreatedBy, &rem.CreatedAt, &rem.UpdatedAt,
			&rw.LastFiredAt)
		if err != nil {
			return nil, err
		}
		unmarshalJSON(days, &rem.Recurrence.Days)
		unmarshalJSON(offsets, &rem.NotificationOffsets)
		unmarshalJSON(emojis, &rem.SelectedEmojis)
		out = append(out, rw)
	}
	return out, rows.Err()
}

func (s *Store) SetReminderLastFired(id string, firedAt time.Time) error {
	_, err := s.db.Exec("UPDATE reminders SET last_fired_at = ? WHERE id = ?", firedAt, id)
	return err
}

// Missed notification operations

func (s *Store) CreateMissedNotification(serverID, reminderMessage, channelName string, missedAt time.Time) (*models.MissedNotification, error) {
	n := &models.MissedNotification{
		ID:              uuid.New().String(),
		ServerID:        serverID,
		ReminderMessage: reminderMessage,
		ChannelName:     channelName,
		MissedAt:        missedAt,
	}

	_, err := s.db.Exec(`
		INSERT INTO missed_notifications (id, server_id, reminder_message, channel_name, missed_at, acknowledged)
		VALUES (?, ?, ?, ?, ?, FALSE)
	`, n.ID, n.ServerID, n.ReminderMessage, n.ChannelName, n.MissedAt)

	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Store) GetMissedNotifications(serverID string) ([]models.MissedNotification, error) {
	rows, err := s.db.Query(`
		SELECT id, server_id, reminder_message, COALESCE(channel_name, ''), missed_at, acknowledged
		FROM missed_notifications
		WHERE server_id = ? AND acknowledged = FALSE
		ORDER BY missed_at DESC
	`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.MissedNotification
	for rows.Next() {
		var n models.MissedNotification
		err := rows.Scan(&n.ID, &n.ServerID, &n.ReminderMessage, &n.ChannelName, &n.MissedAt, &n.Acknowledged)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *Store) GetMissedNotification(id string) (*models.MissedNotification, error) {
	n := &models.MissedNotification{}
	err := s.db.QueryRow(`
		SELECT id, server_id, reminder_message, COALESCE(channel_name, ''), missed_at, acknowledged
		FROM missed_notifications WHERE id = ?
	`, id).Scan(&n.ID, &n.ServerID, &n.ReminderMessage, &n.ChannelName, &n.MissedAt, &n.Acknowledged)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Store) AcknowledgeMissedNotification(id string) error {
	_, err := s.db.Exec("UPDATE missed_notifications SET acknowledged = TRUE WHERE id = ?", id)
	return err
}

// Action log operations

func (s *Store) AppendActionLog(serverID, userID, action, reminderID, snapshot string) (*models.ActionLog, error) {
	entry := &models.ActionLog{
		ID:         uuid.New().String(),
		ServerID:   serverID,
		UserID:     userID,
		Action:     action,
		ReminderID: reminderID,
		Snapshot:   snapshot,
		CreatedAt:  time.Now(),
	}

	_, err := s.db.Exec(`
		INSERT INTO action_logs (id, server_id, user_id, action, reminder_id, snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ServerID, entry.UserID, entry.Action, entry.ReminderID, entry.Snapshot, entry.CreatedAt)

	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Store) GetActionLogs(serverID string, limit int) ([]models.ActionLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, server_id, user_id, action, COALESCE(reminder_id, ''), COALESCE(snapshot, ''), created_at
		FROM action_logs WHERE server_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, serverID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ActionLog
	for rows.Next() {
		var l models.ActionLog
		err := rows.Scan(&l.ID, &l.ServerID, &l.UserID, &l.Action, &l.ReminderID, &l.Snapshot, &l.CreatedAt)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Store) GetActionLog(id string) (*models.ActionLog, error) {
	l := &models.ActionLog{}
	err := s.db.QueryRow(`
		SELECT id, server_id, user_id, action, COALESCE(reminder_id, ''), COALESCE(snapshot, ''), created_at
		FROM action_logs WHERE id = ?
	`, id).Scan(&l.ID, &l.ServerID, &l.UserID, &l.Action, &l.ReminderID, &l.Snapshot, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// JSON column helpers. Empty slices round-trip as empty strings.

func marshalJSON(v interface{}) string {
	switch t := v.(type) {
	case []models.Weekday:
		if len(t) == 0 {
			return ""
		}
	case []int:
		if len(t) == 0 {
			return ""
		}
	case []string:
		if len(t) == 0 {
			return ""
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalJSON(data string, v interface{}) {
	if data == "" {
		return
	}
	_ = json.Unmarshal([]byte(data), v)
}
