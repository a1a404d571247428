package ocr

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"finassist/internal/bank"
	"finassist/internal/logger"
)

const (
	// MaxFileSizeBytes is the maximum file size for synchronous processing (20MB)
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxPagesSync is the maximum number of pages for synchronous processing
	MaxPagesSync = 5
)

// VisionService scans statements with the Cloud Vision API. It satisfies
// bank.LineSource.
type VisionService struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

var _ bank.LineSource = (*VisionService)(nil)

// NewVisionService creates a Vision client with credentials from the environment.
func NewVisionService(ctx context.Context) (*VisionService, error) {
	const op = "NewVisionService"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, wrap(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, wrap(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, wrap(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &VisionService{
		client: client,
		log:    logger.WithComponent("ocr"),
	}, nil
}

// StatementLines implements bank.LineSource.
func (v *VisionService) StatementLines(ctx context.Context, r io.Reader) ([]string, error) {
	scan, err := v.Scan(ctx, r)
	if err != nil {
		return nil, err
	}
	return scan.Lines, nil
}

// Scan runs document text detection over a statement PDF.
func (v *VisionService) Scan(ctx context.Context, r io.Reader) (*StatementScan, error) {
	const op = "Scan"
	startTime := time.Now()

	pdfBytes, err := io.ReadAll(r)
	if err != nil {
		return nil, wrap(op, err, "failed to read PDF data")
	}
	if len(pdfBytes) > MaxFileSizeBytes {
		return nil, wrap(op, ErrPDFTooLarge, fmt.Sprintf("file size: %d bytes", len(pdfBytes)))
	}
	if len(pdfBytes) < 4 || string(pdfBytes[:4]) != "%PDF" {
		return nil, wrap(op, ErrInvalidPDF, "missing PDF header")
	}

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  pdfBytes,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, wrap(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, wrap(op, ErrOCRFailed, "no response from Vision API")
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return nil, wrap(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}

	scan, err := scanFromResponse(fileResp)
	if err != nil {
		return nil, wrap(op, err, "failed to process Vision API response")
	}

	scan.ProcessedAt = time.Now()
	scan.ProcessingDuration = scan.ProcessedAt.Sub(startTime)

	v.log.Info().
		Int("pages", scan.PageCount).
		Int("lines", len(scan.Lines)).
		Float32("confidence", scan.Confidence).
		Dur("duration", scan.ProcessingDuration).
		Msg("Statement scanned")

	return scan, nil
}

// scanFromResponse collects the lines of every page in page order.
func scanFromResponse(fileResp *visionpb.AnnotateFileResponse) (*StatementScan, error) {
	pageCount := len(fileResp.Responses)
	if pageCount == 0 {
		return nil, ErrEmptyDocument
	}
	if pageCount > MaxPagesSync {
		return nil, wrap("scanFromResponse", ErrTooManyPages, fmt.Sprintf("document has %d pages", pageCount))
	}

	scan := &StatementScan{PageCount: pageCount}
	var confidenceSum float32
	var confidenceCount int
	languageSet := make(map[string]bool)

	for pageIdx, page := range fileResp.Responses {
		if page.Error != nil {
			return nil, fmt.Errorf("error processing page %d: %s", pageIdx+1, page.Error.Message)
		}
		if page.FullTextAnnotation == nil {
			continue
		}

		scan.Lines = append(scan.Lines, bank.SplitLines(page.FullTextAnnotation.Text)...)

		for _, p := range page.FullTextAnnotation.Pages {
			if p.Confidence > 0 {
				confidenceSum += p.Confidence
				confidenceCount++
			}
			if p.Property == nil {
				continue
			}
			for _, lang := range p.Property.DetectedLanguages {
				if lang.LanguageCode != "" {
					languageSet[lang.LanguageCode] = true
				}
			}
		}
	}

	if len(scan.Lines) == 0 {
		return nil, ErrEmptyDocument
	}

	if confidenceCount > 0 {
		scan.Confidence = confidenceSum / float32(confidenceCount)
	}
	for lang := range languageSet {
		scan.LanguageCodes = append(scan.LanguageCodes, lang)
	}
	sort.Strings(scan.LanguageCodes)

	return scan, nil
}

// Close closes the underlying Vision client.
func (v *VisionService) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
