package httpapi

import (
	"github.com/fyrsmithlabs/docqd/internal/assembler"
	"github.com/fyrsmithlabs/docqd/internal/pipeline"
)

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is the reply to POST /query.
type QueryResponse struct {
	Answer  string             `json:"answer"`
	Sources []assembler.Source `json:"sources"`
}

// ProcessedFile describes one successfully ingested upload.
type ProcessedFile struct {
	Filename string                  `json:"filename"`
	Pages    int                     `json:"pages"`
	Chunks   int                     `json:"chunks"`
	Failures []pipeline.ChunkFailure `json:"failures,omitempty"`
}

// SkippedFile describes one upload that was not ingested.
type SkippedFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// UploadResponse is the reply to POST /upload.
type UploadResponse struct {
	Message   string          `json:"message"`
	Processed []ProcessedFile `json:"processed"`
	Skipped   []SkippedFile   `json:"skipped,omitempty"`
}

// HealthResponse is the reply to GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	IndexedChunks int    `json:"indexed_chunks"`
	Time          string `json:"time,omitempty"`
	Error         string `json:"error,omitempty"`
}
