package model

import "strings"

// Settings is the persisted user configuration blob.
type Settings struct {
	GeminiAPIKey         string `json:"geminiApiKey"`
	CustomInstructions   string `json:"customInstructions,omitempty"`
	GoogleDriveConnected bool   `json:"googleDriveConnected"`
	AutoSave             bool   `json:"autoSave"`
}

// DefaultSettings mirrors what a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{AutoSave: true}
}

// BackupEnabled reports whether saved task lists should be mirrored to Drive.
func (s Settings) BackupEnabled() bool {
	return s.GoogleDriveConnected && s.AutoSave
}

// Policy is what the extraction engine needs to run.
type Policy struct {
	Credential         string
	CustomInstructions string
}

// Policy derives the behavior policy. envKey is used when no key was saved.
func (s Settings) Policy(envKey string) Policy {
	key := strings.TrimSpace(s.GeminiAPIKey)
	if key == "" {
		key = strings.TrimSpace(envKey)
	}
	return Policy{
		Credential:         key,
		CustomInstructions: strings.TrimSpace(s.CustomInstructions),
	}
}

// Masked returns a copy safe to show back to a client.
func (s Settings) Masked() Settings {
	if n := len(s.GeminiAPIKey); n > 4 {
		s.GeminiAPIKey = strings.Repeat("*", n-4) + s.GeminiAPIKey[n-4:]
	} else if n > 0 {
		s.GeminiAPIKey = strings.Repeat("*", n)
	}
	return s
}
