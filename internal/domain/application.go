package domain

import "time"

// ApplicationStatus is the review state of a submitted application.
type ApplicationStatus string

// Application statuses.
const (
	StatusPendingReview     ApplicationStatus = "pending_review"
	StatusUnderReview       ApplicationStatus = "under_review"
	StatusApproved          ApplicationStatus = "approved"
	StatusRejected          ApplicationStatus = "rejected"
	StatusDocumentsRequired ApplicationStatus = "documents_required"
)

// Application is the record handed to the application store on submission.
type Application struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Contact   CustomerContact   `json:"contact"`
	Vehicle   Vehicle           `json:"vehicle"`
	Profile   ApplicantProfile  `json:"profile"`
	Quote     Quote             `json:"quote"`
	Status    ApplicationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
