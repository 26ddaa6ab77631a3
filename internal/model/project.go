package model

import "time"

// Project groups the affirmation jobs of an account.
type Project struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Title     string    `json:"title"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProjectCreateRequest represents POST /api/projects
type ProjectCreateRequest struct {
	Title    string `json:"title" validate:"required,min=1,max=255"`
	Language string `json:"language" validate:"omitempty,oneof=ru en"`
}
