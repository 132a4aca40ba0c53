package models

// Page is the extracted text of one PDF page after formatting.
type Page struct {
	Number     int
	Text       string
	FileName   string
	DocumentID string
}

// ChunkMetadata records where a chunk came from.
type ChunkMetadata struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	PageNumber int    `json:"page_number"`
}

// Chunk is a bounded span of document text prepared for embedding and storage.
type Chunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}
