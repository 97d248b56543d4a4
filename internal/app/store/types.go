package store

import (
	"encoding/json"
	"time"

	"propchat/internal/app/user"
)

// Account is a full user row, including fields the realtime core needs for
// authorization but never sends to clients.
type Account struct {
	User      user.User
	Status    string
	CreatedAt time.Time
}

// Server is a company chat server row.
type Server struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Channel is a chat channel row. CompanyID is joined in from the owning server
// so authorization checks need a single query.
type Channel struct {
	ID           string    `json:"id"`
	ServerID     string    `json:"server_id"`
	CompanyID    string    `json:"-"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	IsPrivate    bool      `json:"is_private"`
	MessageCount int64     `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role is a server role with its permission set.
type Role struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Color       string          `json:"color"`
	Permissions json.RawMessage `json:"permissions,omitempty"`
}

// Member is a server member together with their live presence snapshot.
type Member struct {
	User       user.User  `json:"user"`
	Status     string     `json:"status"`
	LastActive *time.Time `json:"last_active,omitempty"`
}

// Message is a durable chat message joined with its author's public identity.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	Author      user.User    `json:"user"`
	Content     string       `json:"content"`
	ParentID    *string      `json:"parent_id,omitempty"`
	IsEdited    bool         `json:"is_edited"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Attachment is a stored file reference attached to a message. FileKey points
// into the attachment bucket; clients fetch content via presigned downloads.
type Attachment struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
	FileKey  string `json:"file_key"`
}

// NewAttachment is the input for persisting an attachment alongside a message.
type NewAttachment struct {
	FileName string
	FileType string
	FileSize int64
	FileKey  string
}
