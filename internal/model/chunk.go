package model

// Document is one logical unit submitted for ingestion.
type Document struct {
	Text   string   `json:"text"`
	Source string   `json:"source"`
	Tags   []string `json:"tags"`
}

// Chunk is a bounded segment of a document, the unit of vector storage.
// ID is derived from the chunk text so re-ingesting identical content
// overwrites instead of duplicating.
type Chunk struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Source      string   `json:"source"`
	Tags        []string `json:"tags"`
	ContentHash string   `json:"content_hash"`
}

// Match is one similarity search hit.
type Match struct {
	Text   string   `json:"text"`
	Source string   `json:"source"`
	Tags   []string `json:"tags"`
	Score  float64  `json:"score"`
}
