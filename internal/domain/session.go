package domain

import "time"

// Session binds a browser to a user id. The browser holds only the opaque
// token; everything else lives server-side and dies on logout or expiry.
type Session struct {
	Token     string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Flash is a one-shot message queued for the next rendered page.
type Flash struct {
	Kind    string `json:"kind"` // "error" or "success"
	Message string `json:"message"`
}
