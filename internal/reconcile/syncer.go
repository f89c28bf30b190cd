// Package reconcile repairs drift between invoices and delivery manifests.
// Manifest bookkeeping runs as a best-effort side effect after the financial
// transaction commits; when an enqueue is lost or a worker dies mid-batch,
// invoices end up missing from their manifest or carrying a stale manifest
// number. The syncer walks every active invoice and closes both gaps.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-dms/meridian-dms/internal/invoice"
	jobmetrics "github.com/meridian-dms/meridian-dms/internal/jobs"
	"github.com/meridian-dms/meridian-dms/internal/manifest"
)

// InvoiceSource lists active invoices and accepts number corrections.
type InvoiceSource interface {
	ListActiveRefs(ctx context.Context) ([]invoice.ActiveRef, error)
	SetManifestNumber(ctx context.Context, id int64, number string) error
}

// ManifestDirectory answers whether an invoice is on an active manifest.
type ManifestDirectory interface {
	ActiveManifestNumberFor(ctx context.Context, invoiceID int64) (string, error)
}

// Aggregator attaches an invoice to the manifest for its driver and day.
type Aggregator interface {
	Attach(ctx context.Context, invoiceID int64) error
}

// ItemError records one invoice the run could not repair.
type ItemError struct {
	InvoiceID     int64  `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	Reason        string `json:"reason"`
}

// Progress is one incremental status report during a run.
type Progress struct {
	RunID   string  `json:"run_id"`
	Step    string  `json:"step"`
	Current int     `json:"current"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
	Linked  int     `json:"linked"`
	Skipped int     `json:"skipped"`
}

// Summary is the final report of one run.
type Summary struct {
	RunID          string      `json:"run_id"`
	Total          int         `json:"total"`
	Linked         int         `json:"linked"`
	Skipped        int         `json:"skipped"`
	DriftCorrected int         `json:"drift_corrected"`
	Errors         []ItemError `json:"errors"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     time.Time   `json:"finished_at"`
}

// ProgressFunc receives incremental reports. May be nil.
type ProgressFunc func(Progress)

// Syncer runs the idempotent repair pass.
type Syncer struct {
	invoices  InvoiceSource
	manifests ManifestDirectory
	agg       Aggregator
	metrics   *jobmetrics.Metrics
	logger    *slog.Logger
}

// NewSyncer creates a new syncer. Metrics may be nil.
func NewSyncer(invoices InvoiceSource, manifests ManifestDirectory, agg Aggregator, metrics *jobmetrics.Metrics, logger *slog.Logger) *Syncer {
	return &Syncer{
		invoices:  invoices,
		manifests: manifests,
		agg:       agg,
		metrics:   metrics,
		logger:    logger,
	}
}

// SyncAll walks every active invoice once. Invoices already on an active
// manifest are skipped, with their stored manifest number corrected when it
// disagrees with the manifest actually holding them. Absent invoices are
// attached. An invoice without a driver cannot belong to any manifest and is
// reported as a per-item error. Running twice in a row links nothing on the
// second pass.
func (s *Syncer) SyncAll(ctx context.Context, progress ProgressFunc) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	log := s.logger.With(slog.String("run_id", summary.RunID))

	refs, err := s.invoices.ListActiveRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list invoices: %w", err)
	}
	summary.Total = len(refs)
	log.Info("reconciliation started", slog.Int("total", summary.Total))

	report := func(step string, current int) {
		if progress == nil {
			return
		}
		p := Progress{
			RunID:   summary.RunID,
			Step:    step,
			Current: current,
			Total:   summary.Total,
			Linked:  summary.Linked,
			Skipped: summary.Skipped,
		}
		if summary.Total > 0 {
			p.Percent = float64(current) / float64(summary.Total) * 100
		}
		progress(p)
	}

	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report(fmt.Sprintf("checking %s", ref.InvoiceNumber), i)

		if ref.DriverID == 0 {
			summary.Errors = append(summary.Errors, ItemError{
				InvoiceID:     ref.ID,
				InvoiceNumber: ref.InvoiceNumber,
				Reason:        "no driver assigned",
			})
			continue
		}

		number, err := s.manifests.ActiveManifestNumberFor(ctx, ref.ID)
		switch {
		case err == nil:
			if number != ref.ManifestNumber {
				if err := s.invoices.SetManifestNumber(ctx, ref.ID, number); err != nil {
					summary.Errors = append(summary.Errors, ItemError{
						InvoiceID:     ref.ID,
						InvoiceNumber: ref.InvoiceNumber,
						Reason:        fmt.Sprintf("correct manifest number: %v", err),
					})
					continue
				}
				summary.DriftCorrected++
				s.metrics.AddDrifted(1)
			}
			summary.Skipped++

		case errors.Is(err, manifest.ErrNotFound):
			if err := s.agg.Attach(ctx, ref.ID); err != nil {
				summary.Errors = append(summary.Errors, ItemError{
					InvoiceID:     ref.ID,
					InvoiceNumber: ref.InvoiceNumber,
					Reason:        fmt.Sprintf("attach: %v", err),
				})
				continue
			}
			summary.Linked++
			s.metrics.AddLinked(1)

		default:
			summary.Errors = append(summary.Errors, ItemError{
				InvoiceID:     ref.ID,
				InvoiceNumber: ref.InvoiceNumber,
				Reason:        fmt.Sprintf("lookup manifest: %v", err),
			})
		}
	}

	summary.FinishedAt = time.Now().UTC()
	report("done", summary.Total)
	log.Info("reconciliation finished",
		slog.Int("linked", summary.Linked),
		slog.Int("skipped", summary.Skipped),
		slog.Int("drift_corrected", summary.DriftCorrected),
		slog.Int("errors", len(summary.Errors)),
		slog.Duration("took", summary.FinishedAt.Sub(summary.StartedAt)))
	return summary, nil
}
