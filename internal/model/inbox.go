package model

const (
	InboxFileStateDone   = "done"
	InboxFileStateFailed = "failed"
)

// InboxFile is one catalog row tracking a processed drop-folder file.
type InboxFile struct {
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
	Chunks      int    `json:"chunks"`
	Nodes       int    `json:"nodes"`
	State       string `json:"state"`
	Mtime       int64  `json:"mtime"`
}

// InboxStats is the aggregate view served by /stats.
type InboxStats struct {
	Files  int64 `json:"files"`
	Chunks int64 `json:"chunks"`
	Nodes  int64 `json:"nodes"`
	Failed int64 `json:"failed"`
}
