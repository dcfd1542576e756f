package models

import "time"

// UploadToken authorizes a single media upload
type UploadToken struct {
	Token     string    // Hex-encoded random token
	CreatedAt time.Time // When the token was issued
	ExpiresAt time.Time // When the token stops being accepted
	ClientIP  string    // Address of the client that requested it
	Used      bool      // Set once an upload consumed the token
	UsedAt    time.Time // When the token was redeemed
}

// IsValid reports whether the token is unused and unexpired
func (t *UploadToken) IsValid() bool {
	return !t.Used && time.Now().Before(t.ExpiresAt)
}

// UploadTokenResponse is returned when a client requests an upload token
type UploadTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}
