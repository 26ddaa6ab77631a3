package model

import "time"

// VoiceSample is a user's recorded voice, kept for future cloning and subject to retention purge.
type VoiceSample struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Key       string    `json:"key"`
	Consent   bool      `json:"consent"`
	CreatedAt time.Time `json:"createdAt"`
}

// VoiceSampleKey returns the storage key for a new upload.
func VoiceSampleKey(accountID, randomID, ext string) string {
	return "voice-samples/" + accountID + "/" + randomID + ext
}

// VoiceSampleResponse is returned by the upload endpoints
type VoiceSampleResponse struct {
	ID      string `json:"id"`
	Key     string `json:"key"`
	Consent bool   `json:"consent"`
}
