package models

// Role tags a prompt message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is a single entry of a chat prompt.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
