package domain

import "time"

// MaxDeviceTokens bounds the push tokens kept per user.
const MaxDeviceTokens = 5

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	Role           string    `json:"role"`
	FullName       string    `json:"full_name"`
	Phone          string    `json:"phone,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Parent accounts
	StudentIDs []string `json:"student_ids"`

	// Staff accounts
	BranchID         string   `json:"branch_id,omitempty"`
	AssignedClassIDs []string `json:"assigned_class_ids"`

	FCMTokens []string `json:"fcm_tokens"`
}

func (u *User) IsParent() bool { return u.Role == RoleParent }

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// AddDeviceToken registers a push token. Duplicates are ignored and the list
// keeps the most recent MaxDeviceTokens in registration order. It reports
// whether the list changed.
func (u *User) AddDeviceToken(token string) bool {
	for _, t := range u.FCMTokens {
		if t == token {
			return false
		}
	}
	u.FCMTokens = append(u.FCMTokens, token)
	if n := len(u.FCMTokens); n > MaxDeviceTokens {
		u.FCMTokens = append([]string(nil), u.FCMTokens[n-MaxDeviceTokens:]...)
	}
	return true
}

// HasStudent reports whether a parent is linked to the student.
func (u *User) HasStudent(studentID string) bool {
	for _, id := range u.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

func (u *User) AssignedTo(classID string) bool {
	for _, id := range u.AssignedClassIDs {
		if id == classID {
			return true
		}
	}
	return false
}

// Profile is the public view of a user.
type Profile struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	Role             string   `json:"role"`
	FullName         string   `json:"full_name"`
	Phone            string   `json:"phone,omitempty"`
	IsActive         bool     `json:"is_active"`
	StudentIDs       []string `json:"student_ids"`
	BranchID         string   `json:"branch_id,omitempty"`
	AssignedClassIDs []string `json:"assigned_class_ids"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:               u.ID,
		Email:            u.Email,
		Role:             u.Role,
		FullName:         u.FullName,
		Phone:            u.Phone,
		IsActive:         u.IsActive,
		StudentIDs:       nonNil(u.StudentIDs),
		BranchID:         u.BranchID,
		AssignedClassIDs: nonNil(u.AssignedClassIDs),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
