package model

// SyncResult is returned to callers of a sync run.
type SyncResult struct {
	Success  bool   `json:"success"`
	NewCount int    `json:"newCount"`
	OldCount int    `json:"oldCount"`
	Written  int    `json:"written"`
	Removed  int    `json:"removed"`
	Pages    int    `json:"pages"`
	Error    string `json:"error,omitempty"`
}
