package models

import "time"

type Category struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type Post struct {
	ID           string     `json:"id"`
	Subject      string     `json:"subject"`
	Content      string     `json:"content"`
	Categories   []Category `json:"categories,omitempty"`
	Author       User       `json:"user,omitempty"`
	LikeCount    int        `json:"like_count"`
	DislikeCount int        `json:"dislike_count"`
	CreatedAt    time.Time  `json:"created_at,omitempty"`
}

type Comment struct {
	ID           string `json:"id,omitempty"`
	PostID       string `json:"post_id"`
	Content      string `json:"content"`
	User         User   `json:"user"`
	LikeCount    int    `json:"like_count"`
	DislikeCount int    `json:"dislike_count"`
}

// PrivateMessage is a direct message between two users. MessageID is
// assigned client-side for outbound messages so the authoritative server
// echo can replace the provisional local copy.
type PrivateMessage struct {
	MessageID  string    `json:"message_id,omitempty"`
	SenderID   string    `json:"sender_id,omitempty"`
	ReceiverID string    `json:"receiver_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}
