package domain

import "time"

// Model is a 3D asset an anchor record may reference through AnchorRecord.ModelID.
type Model struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ModelName   string    `json:"model_name,omitempty"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	CreatorID   string    `json:"creator_id,omitempty"`
	URL         string    `json:"url"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Scale       float64   `json:"scale"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
}
