package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindash-server/middleware"
	"remindash-server/models"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	handler := NewAuthHandler(f.store)

	r := authedRequest("POST", "/api/auth/register", "",
		models.RegisterRequest{Username: "newbie", DisplayName: "Newbie", Password: "secret1"})
	w := httptest.NewRecorder()
	handler.Register(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.RoleSupporter, resp.User.Role)

	claims, err := middleware.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)

	// Taken usernames and short passwords are rejected.
	r = authedRequest("POST", "/api/auth/register", "",
		models.RegisterRequest{Username: "newbie", DisplayName: "Other", Password: "secret1"})
	w = httptest.NewRecorder()
	handler.Register(w, r)
	assert.Equal(t, http.StatusConflict, w.Code)

	r = authedRequest("POST", "/api/auth/register", "",
		models.RegisterRequest{Username: "other", DisplayName: "Other", Password: "short"})
	w = httptest.NewRecorder()
	handler.Register(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = authedRequest("POST", "/api/auth/login", "",
		models.LoginRequest{Username: "newbie", Password: "wrong"})
	w = httptest.NewRecorder()
	handler.Login(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r = authedRequest("POST", "/api/auth/login", "",
		models.LoginRequest{Username: "newbie", Password: "secret1"})
	w = httptest.NewRecorder()
	handler.Login(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusReportsUnknownForMissingUser(t *testing.T) {
	f := newFixture(t)
	handler := NewAuthHandler(f.store)

	owner := f.addUser(t, "owner", models.RoleOwner, "")

	r := authedRequest("GET", "/api/auth/status", owner.ID, nil)
	w := httptest.NewRecorder()
	handler.Status(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.RoleOwner, resp.Role)

	r = authedRequest("GET", "/api/auth/status", "no-such-user", nil)
	w = httptest.NewRecorder()
	handler.Status(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.RoleUnknown, resp.Role)
}
