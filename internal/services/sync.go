package services

import (
	"context"
	"time"

	"github.com/conneroisu/docsite/internal/config"
	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/logging"
	"github.com/conneroisu/docsite/internal/registry"
	"github.com/conneroisu/docsite/internal/relocator"
)

// SyncService copies the assets referenced by every document into the
// public directory.
type SyncService struct {
	config *config.Config
	logger logging.Logger
}

// NewSyncService creates a new sync service
func NewSyncService(cfg *config.Config, logger logging.Logger) *SyncService {
	return &SyncService{
		config: cfg,
		logger: logging.OrNop(logger).WithComponent("sync"),
	}
}

// SyncOptions contains options for the sync process
type SyncOptions struct {
	// Slugs limits the sync to these documents; empty means all.
	Slugs []string
}

// SyncResult contains the result of a sync operation
type SyncResult struct {
	Duration  time.Duration
	Documents int
	Copied    int
	UpToDate  int
	Missing   int
	Failed    int
	Reports   map[string]*relocator.Report
	Errors    []error
	Success   bool
}

// Sync processes every selected document in the docs registry.
func (s *SyncService) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	startTime := time.Now()
	result := &SyncResult{
		Reports: make(map[string]*relocator.Report),
		Success: true,
	}

	contentRoot, err := s.config.ContentRoot()
	if err != nil {
		return nil, docerrors.NewIOError("resolve", s.config.Content.Dir, err)
	}
	publicRoot, err := s.config.PublicRoot()
	if err != nil {
		return nil, docerrors.NewIOError("resolve", s.config.Content.PublicDir, err)
	}

	reg := registry.New(contentRoot, s.logger)
	if err := reg.Refresh(); err != nil {
		if !docerrors.IsType(err, docerrors.ErrorTypeConfig) {
			return nil, err
		}
		s.logger.Warn(ctx, err, "Ignoring invalid docs config")
	}

	docs, err := selectDocuments(reg, opts.Slugs)
	if err != nil {
		return nil, err
	}

	r := relocator.New(relocator.Options{
		ContentRoot: contentRoot,
		PublicRoot:  publicRoot,
		Logger:      s.logger,
	})

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		report, err := r.ProcessFile(doc.FilePath)
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, err)
		}
		if report == nil {
			continue
		}

		result.Documents++
		result.Reports[doc.Slug] = report
		result.Copied += report.Count(relocator.ActionCopied)
		result.UpToDate += report.Count(relocator.ActionUpToDate)
		result.Missing += report.Count(relocator.ActionMissing)
		result.Failed += report.Count(relocator.ActionFailed)

		s.logger.Debug(ctx, "Processed document", "slug", doc.Slug,
			"references", len(report.References))
	}

	result.Duration = time.Since(startTime)
	s.logger.Info(ctx, "Asset sync complete",
		"documents", result.Documents,
		"copied", result.Copied,
		"up_to_date", result.UpToDate,
		"missing", result.Missing,
		"failed", result.Failed,
		"duration", result.Duration.String())

	return result, nil
}

func selectDocuments(reg *registry.Registry, slugs []string) ([]*registry.Document, error) {
	if len(slugs) == 0 {
		return reg.All(), nil
	}

	docs := make([]*registry.Document, 0, len(slugs))
	for _, slug := range slugs {
		doc, ok := reg.Lookup(slug)
		if !ok {
			return nil, docerrors.NewContentError("lookup", slug, registry.ErrNotFound)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
