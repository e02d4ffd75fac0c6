package model

import (
	"time"
)

// VideoAsset is a promotional video shared with every user
type VideoAsset struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	FileURL         string    `json:"file_url"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	SizeBytes       int64     `json:"file_size"`
	DurationSeconds int       `json:"duration"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// VideoAssetInput carries the fields an admin supplies when publishing a video
type VideoAssetInput struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	FileURL         string `json:"file_url"`
	ThumbnailURL    string `json:"thumbnail_url"`
	SizeBytes       int64  `json:"file_size"`
	DurationSeconds int    `json:"duration"`
}
