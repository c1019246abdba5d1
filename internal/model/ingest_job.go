package model

// IngestJob is the queue payload for one uploaded file. The worker
// re-resolves the user's credential from Email, so no key material ever
// travels through the broker. Path points at a temp file the worker is
// responsible for removing.
type IngestJob struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	NotebookID string `json:"notebook_id"`
	FileName   string `json:"file_name"`
	Path       string `json:"path"`
}
