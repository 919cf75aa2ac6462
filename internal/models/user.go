package models

import "time"

type User struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
}

// Session is the current login identity. Owned by the session store;
// everything else treats it as a read-only value.
type Session struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// UserStatus is one entry of a server presence snapshot.
type UserStatus struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsOnline bool   `json:"is_online"`
}

// RosterEntry is the locally cached view of one known user. Entries are
// never deleted; users that drop out of server snapshots stay cached as
// offline.
type RosterEntry struct {
	UserID          string     `json:"user_id"`
	Username        string     `json:"username"`
	IsOnline        bool       `json:"is_online"`
	LastMessageTime *time.Time `json:"last_message_time"`
}
