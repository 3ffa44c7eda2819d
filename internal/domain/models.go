// Package domain defines the persistence models for users, threads,
// messages and uploaded documents. These types are mapped with GORM and
// form the core data layer of the chat application.
package domain

import (
	"strings"
	"time"
)

// DefaultTopic is the topic a thread carries until it is auto-titled.
const DefaultTopic = "New Chat"

// User is an account that owns threads. Credentials are compared verbatim.
//
// Fields:
//   - ID: autoincrement primary key.
//   - Username: unique login name.
//   - Password: stored as supplied.
type User struct {
	ID       uint   `json:"id"       gorm:"primaryKey;autoIncrement"`
	Username string `json:"username" gorm:"type:varchar(255);not null;uniqueIndex:ux_users_username"`
	Password string `json:"-"        gorm:"type:varchar(255);not null"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Thread is a conversation owned by a user. Its primary key is a UUID
// chosen by the caller at creation time.
//
// Fields:
//   - ThreadID: caller-supplied UUID primary key.
//   - Topic: display title, DefaultTopic until auto-titled.
//   - Pinned: pinned threads sort before unpinned ones.
//   - LastUpdated: bumped on every submission; drives list ordering.
//   - UserID: owner (FK users.id).
//   - Messages, Documents: children keyed by thread_id; the foreign keys
//     live on their tables.
type Thread struct {
	ThreadID    string    `json:"thread_id"    gorm:"column:thread_id;type:varchar(36);primaryKey"`
	Topic       string    `json:"topic"        gorm:"type:varchar(255);not null;default:'New Chat'"`
	Pinned      bool      `json:"pinned"       gorm:"not null;default:false"`
	LastUpdated time.Time `json:"last_updated" gorm:"not null;index:idx_threads_user_order,priority:2"`
	UserID      uint      `json:"user_id"      gorm:"not null;index:idx_threads_user_order,priority:1"`

	User      User       `json:"-" gorm:"foreignKey:UserID;references:ID"`
	Messages  []Message  `json:"-" gorm:"foreignKey:ThreadID;references:ThreadID"`
	Documents []Document `json:"-" gorm:"foreignKey:ThreadID;references:ThreadID"`
}

// TableName returns the database table name for Thread.
func (Thread) TableName() string { return "threads" }

// Message is a single utterance within a thread.
//
// Messages are ordered by (CreatedAt, ID); ID breaks ties between rows
// written within the same clock tick.
type Message struct {
	ID        uint      `json:"id"         gorm:"primaryKey;autoIncrement"`
	ThreadID  string    `json:"thread_id"  gorm:"column:thread_id;type:varchar(36);not null;index:idx_thread_msgs,priority:1"`
	Role      string    `json:"role"       gorm:"type:varchar(16);not null"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index:idx_thread_msgs,priority:2"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Document is text extracted from a file uploaded into a thread. It is the
// retrieval corpus for that thread only.
type Document struct {
	ID       uint   `json:"id"        gorm:"primaryKey;autoIncrement"`
	Title    string `json:"title"     gorm:"type:varchar(255);not null"`
	Content  string `json:"content"   gorm:"type:text;not null"`
	ThreadID string `json:"thread_id" gorm:"column:thread_id;type:varchar(36);not null;index"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }

var placeholderTopics = []string{DefaultTopic, "Untitled", "Chat"}

// IsPlaceholderTopic reports whether topic still marks a thread that has not
// been titled yet.
func IsPlaceholderTopic(topic string) bool {
	t := strings.TrimSpace(topic)
	if t == "" {
		return true
	}
	for _, p := range placeholderTopics {
		if strings.EqualFold(t, p) {
			return true
		}
	}
	return false
}
