package domain

import "time"

type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email,omitempty"`
	Username      string    `json:"username"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	Coins         int       `json:"coins"`
	IsAdmin       bool      `json:"is_admin"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// Role maps the admin flag onto the role claim carried in access tokens.
func (u User) Role() string {
	if u.IsAdmin {
		return "admin"
	}
	return "user"
}
