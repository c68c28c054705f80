package domain

import "time"

type ActivityPhoto struct {
	Key        string    `json:"s3_key"`
	URL        string    `json:"url"`
	Caption    string    `json:"caption,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Activity is one day's log for a student: lesson progress, notes and photos.
type Activity struct {
	ID             string          `json:"id"`
	StudentID      string          `json:"student_id"`
	BranchID       string          `json:"branch_id"`
	Date           string          `json:"date"`
	LessonProgress string          `json:"lesson_progress,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	Photos         []ActivityPhoto `json:"photos"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CreatedBy      string          `json:"created_by,omitempty"`
}
