package models

type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Pages      int    `json:"pages"`
	Chunks     int    `json:"chunks"`
}

type AskResponse struct {
	Answer  string  `json:"answer"`
	Sources []Chunk `json:"sources,omitempty"`
}
