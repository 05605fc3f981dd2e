package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studyhive/studyhive-api/internal/models"
	"github.com/studyhive/studyhive-api/pkg/export"
	"github.com/studyhive/studyhive-api/pkg/storage"
)

// ExportFormat enumerates supported export renderings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportActivityRepository interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error)
}

type exportResourceRepository interface {
	List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders admin reports to files and hands out signed
// download links for them.
type ExportService struct {
	activities exportActivityRepository
	resources  exportResourceRepository
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(activities exportActivityRepository, resources exportResourceRepository, fileStore fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		activities: activities,
		resources:  resources,
		storage:    fileStore,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// ExportActivities renders the activity log matching the filter.
func (s *ExportService) ExportActivities(ctx context.Context, filter models.ActivityFilter, format ExportFormat) (*ExportResult, error) {
	filter.PageSize = 200
	if filter.Page < 1 {
		filter.Page = 1
	}
	activities, _, err := s.activities.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(activities))
	for _, a := range activities {
		resourceID := ""
		if a.ResourceID != nil {
			resourceID = *a.ResourceID
		}
		rows = append(rows, map[string]string{
			"User ID":     a.UserID,
			"Action":      string(a.Action),
			"Resource ID": resourceID,
			"Detail":      a.Detail,
			"At":          a.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"User ID", "Action", "Resource ID", "Detail", "At"},
		Rows:    rows,
	}
	return s.render(dataset, "Activity Report", "activities", format)
}

// ExportResources renders the resource catalogue with its counters.
func (s *ExportService) ExportResources(ctx context.Context, filter models.ResourceFilter, format ExportFormat) (*ExportResult, error) {
	filter.PageSize = 100
	if filter.Page < 1 {
		filter.Page = 1
	}
	resources, _, err := s.resources.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(resources))
	for _, r := range resources {
		rows = append(rows, map[string]string{
			"Title":      r.Title,
			"Type":       string(r.Type),
			"Department": r.Department,
			"Semester":   fmt.Sprintf("%d", r.Semester),
			"Uploader":   r.Uploader,
			"Views":      fmt.Sprintf("%d", r.Stats.Views),
			"Likes":      fmt.Sprintf("%d", r.Stats.Likes),
			"Comments":   fmt.Sprintf("%d", r.Stats.Comments),
			"Downloads":  fmt.Sprintf("%d", r.Stats.Downloads),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Title", "Type", "Department", "Semester", "Uploader", "Views", "Likes", "Comments", "Downloads"},
		Rows:    rows,
	}
	return s.render(dataset, "Resource Report", "resources", format)
}

func (s *ExportService) render(dataset export.Dataset, title, kind string, format ExportFormat) (*ExportResult, error) {
	var payload []byte
	var err error
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().UTC().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s.%s", kind, timestamp, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(kind, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (kind, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}
