package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VideoStatus represents the transcoding state of a video asset.
type VideoStatus string

// Possible video asset status values
const (
	VideoStatusUploaded    VideoStatus = "uploaded"
	VideoStatusTranscoding VideoStatus = "transcoding"
	VideoStatusReady       VideoStatus = "ready"
	VideoStatusFailed      VideoStatus = "failed"
)

// VideoAsset validation errors, all wrapping ErrValidation.
var (
	ErrEmptyVideoAssetID  = fmt.Errorf("%w: video asset ID cannot be empty", ErrValidation)
	ErrEmptyVideoCourseID = fmt.Errorf("%w: video asset course ID cannot be empty", ErrValidation)
	ErrEmptySourceURL     = fmt.Errorf("%w: video asset source URL cannot be empty", ErrValidation)
	ErrInvalidVideoStatus = fmt.Errorf("%w: invalid video asset status", ErrValidation)
)

// VideoAsset represents an uploaded lecture video and its transcoding state.
// ProviderJobID is the transcoding provider's identifier, used to correlate
// provider callbacks with the asset.
type VideoAsset struct {
	ID            uuid.UUID   `json:"id"`
	CourseID      uuid.UUID   `json:"course_id"`
	SourceURL     string      `json:"source_url"`
	PlaybackURL   string      `json:"playback_url,omitempty"`
	ProviderJobID string      `json:"provider_job_id,omitempty"`
	Status        VideoStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Validate checks if the VideoAsset has valid data.
// Returns an error if any field fails validation.
func (v *VideoAsset) Validate() error {
	if v.ID == uuid.Nil {
		return ErrEmptyVideoAssetID
	}

	if v.CourseID == uuid.Nil {
		return ErrEmptyVideoCourseID
	}

	if v.SourceURL == "" {
		return ErrEmptySourceURL
	}

	if !isValidVideoStatus(v.Status) {
		return ErrInvalidVideoStatus
	}

	return nil
}

// UpdateStatus updates the asset's status and the UpdatedAt timestamp.
// Returns an error if the new status is invalid.
func (v *VideoAsset) UpdateStatus(status VideoStatus) error {
	if !isValidVideoStatus(status) {
		return ErrInvalidVideoStatus
	}

	v.Status = status
	v.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidVideoStatus checks if the given status is a valid VideoStatus.
func isValidVideoStatus(status VideoStatus) bool {
	switch status {
	case VideoStatusUploaded, VideoStatusTranscoding, VideoStatusReady, VideoStatusFailed:
		return true
	default:
		return false
	}
}
