package model

import (
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Not exposed
	FullName     string    `json:"fullName"`
	IsEnabled    bool      `json:"isEnabled"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserProfile is the public view of a user. It never carries the hash.
type UserProfile struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	IsEnabled bool      `json:"isEnabled"`
	CreatedAt time.Time `json:"createdAt"`
	Roles     []string  `json:"roles"`
}

func (u *User) ToProfile(roles []string) UserProfile {
	if roles == nil {
		roles = []string{}
	}
	return UserProfile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		IsEnabled: u.IsEnabled,
		CreatedAt: u.CreatedAt,
		Roles:     roles,
	}
}
