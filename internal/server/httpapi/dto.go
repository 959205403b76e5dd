package httpapi

import (
	"time"

	"github.com/dmitrijs2005/dumpvault/internal/server/services"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type authResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

type sessionResponse struct {
	User userResponse `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type lockedResponse struct {
	Error            string `json:"error"`
	RemainingMinutes int    `json:"remainingMinutes"`
}

type invalidPasswordResponse struct {
	Error             string `json:"error"`
	AttemptsRemaining int    `json:"attemptsRemaining"`
}

// fileResponse exposes the name the user uploaded; the storage name stays
// server-side.
type fileResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	URL        string    `json:"url"`
	UploadDate time.Time `json:"uploadDate"`
}

type fileListResponse struct {
	Files []fileResponse `json:"files"`
}

type uploadResponse struct {
	Message string       `json:"message"`
	File    fileResponse `json:"file"`
}

func toFileResponse(v services.FileView) fileResponse {
	return fileResponse{
		ID:         v.ID,
		Name:       v.OriginalName,
		Size:       v.Size,
		Type:       v.MimeType,
		URL:        v.URL,
		UploadDate: v.CreatedAt,
	}
}
