// Package ocr reads scanned bank statements with Google Cloud Vision.
//
// A statement exported by the bank carries a text layer that bank.ExtractPDFLines
// reads directly. A scanned or photographed statement does not, and this
// package recovers its lines through document text detection instead.
//
// Credentials come from GOOGLE_CREDENTIALS (inline JSON) or
// GOOGLE_APPLICATION_CREDENTIALS (a file path), falling back to the
// application default credentials.
//
// Synchronous Vision requests accept at most 20MB and 5 pages.
package ocr

import (
	"time"
)

// StatementScan is the text of a scanned statement, one entry per line.
type StatementScan struct {
	Lines []string `json:"lines"`

	PageCount int `json:"page_count"`

	// Confidence is the mean page confidence, between 0 and 1.
	Confidence float32 `json:"confidence"`

	LanguageCodes []string `json:"language_codes,omitempty"`

	ProcessedAt        time.Time     `json:"processed_at"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}
