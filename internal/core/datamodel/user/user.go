package user

import "time"

// User is one entry of the persisted user directory.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"passwordHash"`
	Role         string     `json:"role"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

// Session is the persisted active identity; it never carries a credential.
type Session struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

const DirectorySchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "username", "passwordHash", "role"],
    "properties": {
      "id":           {"type": "string", "minLength": 1},
      "username":     {"type": "string", "minLength": 1},
      "passwordHash": {"type": "string"},
      "role":         {"enum": ["admin", "employee"]}
    }
  }
}`

const SessionSchema = `{
  "type": "object",
  "required": ["id", "username", "role"],
  "properties": {
    "id":       {"type": "string", "minLength": 1},
    "username": {"type": "string"},
    "role":     {"enum": ["admin", "employee"]}
  }
}`
