package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/komunitas-api/internal/models"
	appErrors "github.com/noah-isme/komunitas-api/pkg/errors"
	"github.com/noah-isme/komunitas-api/pkg/export"
)

type engagementReportStore interface {
	ListEngagement(ctx context.Context, kind models.ContentKind, contentID string) ([]models.EngagementRow, error)
}

type exportHeadReader interface {
	Head(ctx context.Context, kind models.ContentKind, id string) (*models.ContentHead, error)
}

// ExportService produces downloadable engagement reports for admins.
type ExportService struct {
	heads  exportHeadReader
	store  engagementReportStore
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs an ExportService instance.
func NewExportService(heads exportHeadReader, store engagementReportStore, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		heads:  heads,
		store:  store,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// ExportResult carries rendered report bytes with transfer metadata.
type ExportResult struct {
	FileName    string
	ContentType string
	Payload     []byte
}

// EngagementReport renders the per-user engagement ledger of one content
// item as CSV or PDF.
func (s *ExportService) EngagementReport(ctx context.Context, kind models.ContentKind, contentID, format string) (*ExportResult, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown content kind")
	}

	head, err := s.heads.Head(ctx, kind, contentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch content")
	}

	rows, err := s.store.ListEngagement(ctx, kind, contentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch engagement rows")
	}

	data := export.Dataset{
		Headers: []string{"User ID", "Full Name", "Viewed At", "Liked At", "Comments"},
	}
	for _, row := range rows {
		viewedAt := ""
		if row.ViewedAt != nil {
			viewedAt = row.ViewedAt.UTC().Format("2006-01-02 15:04:05")
		}
		likedAt := ""
		if row.LikedAt != nil {
			likedAt = row.LikedAt.UTC().Format("2006-01-02 15:04:05")
		}
		data.Rows = append(data.Rows, map[string]string{
			"User ID":   row.UserID,
			"Full Name": row.FullName,
			"Viewed At": viewedAt,
			"Liked At":  likedAt,
			"Comments":  strconv.Itoa(row.Comments),
		})
	}

	title := fmt.Sprintf("Engagement Report: %s", head.Title)
	base := fmt.Sprintf("engagement_%s_%s", kind, contentID)

	switch strings.ToLower(format) {
	case "", "csv":
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{FileName: base + ".csv", ContentType: "text/csv", Payload: payload}, nil
	case "pdf":
		payload, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{FileName: base + ".pdf", ContentType: "application/pdf", Payload: payload}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
