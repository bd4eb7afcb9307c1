package models

import "time"

// MemberRole is the user's standing on one specific guild, as reported by
// Discord: admin or plain member.
type MemberRole string

const (
	MemberAdmin  MemberRole = "admin"
	MemberNormal MemberRole = "member"
)

func (r MemberRole) IsValid() bool {
	return r == MemberAdmin || r == MemberNormal
}

type ServerType string

const (
	ServerTypeNormal      ServerType = "normal"
	ServerTypeHitTheWorld ServerType = "hit_the_world"
)

func (t ServerType) IsValid() bool {
	return t == ServerTypeNormal || t == ServerTypeHitTheWorld
}

type Server struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Icon        string     `json:"icon,omitempty"`
	CustomName  string     `json:"customName,omitempty"`
	CustomIcon  string     `json:"customIcon,omitempty"`
	ServerType  ServerType `json:"serverType"`
	HasPassword bool       `json:"hasPassword"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ServerWithRole is a server joined with the requesting user's member role.
type ServerWithRole struct {
	Server
	Role MemberRole `json:"role"`
}

type ServerSettingsRequest struct {
	CustomName string `json:"customName"`
	CustomIcon string `json:"customIcon"`
	ServerType string `json:"serverType"`
}

type SetPasswordRequest struct {
	Password string `json:"password"`
}

type VerifyPasswordRequest struct {
	Password string `json:"password"`
}

type WriteTokenResponse struct {
	WriteToken string `json:"writeToken"`
}

type PasswordStatusResponse struct {
	HasPassword bool `json:"hasPassword"`
}
