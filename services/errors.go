package services

import "errors"

var (
	// ErrResourceNotFound means the PDF could not be opened or parsed.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrStorageWrite means the vector store rejected a clear or insert.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrStorageRead means a similarity search failed. Queries continue with an empty context.
	ErrStorageRead = errors.New("storage read failed")
	// ErrGeneration means the chat backend failed or timed out.
	ErrGeneration = errors.New("generation failed")
)
