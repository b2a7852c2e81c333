package models

import "time"

// Identity is the verified user bound to a connection. Ownership of the user
// record itself lives with the user directory; the chat core only carries the
// id and display name around.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Online    bool      `json:"online"`
	CreatedAt time.Time `json:"created_at"`
}
