package models

type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// RunRequest drives a full demo run: optional re-ingestion, one question, one answer file.
type RunRequest struct {
	PDFPath    string
	Reindex    bool
	Question   string
	TopK       int
	OutputPath string
}
