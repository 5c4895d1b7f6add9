package models

import "time"

// Media is a file attached to a post. The blob itself lives in the blob store.
type Media struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PostID     uint      `gorm:"not null;index" json:"post_id"`
	Post       *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Name       string    `gorm:"not null" json:"name"`
	URL        string    `gorm:"not null" json:"url"`
	MimeType   string    `gorm:"not null" json:"mime_type"`
	PreviewURL string    `json:"preview_url,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	BlobKey    string    `gorm:"not null" json:"-"`
	PreviewKey string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// MediaView is the client-facing shape of an attachment.
type MediaView struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	MimeType   string `json:"mime_type"`
	PreviewURL string `json:"preview_url,omitempty"`
}

// View returns the client-facing shape of m.
func (m Media) View() MediaView {
	return MediaView{Name: m.Name, URL: m.URL, MimeType: m.MimeType, PreviewURL: m.PreviewURL}
}

// IsImage reports whether the attachment can get a preview.
func (m Media) IsImage() bool {
	switch m.MimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}
