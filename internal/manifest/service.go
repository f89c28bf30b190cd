package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-dms/meridian-dms/internal/sequence"
)

// Service maintains manifests. All three mutations run the full
// read-mutate-refold cycle inside one transaction; callers reach them
// through the background queue, so every operation tolerates repeated
// delivery of the same message.
type Service struct {
	repo   Repository
	source InvoiceSource
	seq    sequence.Allocator
	cache  *StatsCache
	logger *slog.Logger
}

// NewService creates a new service.
func NewService(repo Repository, source InvoiceSource, seq sequence.Allocator, cache *StatsCache, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		source: source,
		seq:    seq,
		cache:  cache,
		logger: logger,
	}
}

// Attach places an invoice on the active manifest for its (driver, day),
// creating the manifest when it is the day's first invoice for that driver.
// A lost create race against a concurrent attach is retried as an append.
func (s *Service) Attach(ctx context.Context, invoiceID int64) error {
	info, err := s.source.InvoiceForManifest(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("load invoice %d: %w", invoiceID, err)
	}
	if !info.IsActive {
		s.logger.Info("skipping attach of inactive invoice", slog.Int64("invoice_id", invoiceID))
		return nil
	}

	var manifestNumber string
	attempt := func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			// Repeated queue delivery: refresh in place instead of duplicating.
			if existing, err := tx.FindSummaryByInvoice(ctx, invoiceID); err == nil {
				return s.refreshLocked(ctx, tx, existing, info, &manifestNumber)
			} else if !errors.Is(err, ErrNotFound) {
				return err
			}

			day := DayOf(info.InvoiceDate)
			m, err := tx.FindActiveForUpdate(ctx, info.DriverID, day)
			if errors.Is(err, ErrNotFound) {
				m, err = s.createManifest(ctx, tx, info.DriverID, day)
			}
			if err != nil {
				return err
			}

			if _, err := tx.InsertSummary(ctx, summaryFrom(m.ID, info)); err != nil {
				return err
			}
			if err := s.refold(ctx, tx, m.ID); err != nil {
				return err
			}
			manifestNumber = m.ManifestNumber
			return nil
		})
	}

	err = attempt()
	if errors.Is(err, ErrDuplicateActive) {
		// Another attach created the manifest first. The unique index
		// aborted our transaction, so rerun it; the lookup now finds the row.
		err = attempt()
	}
	if err != nil {
		return err
	}

	if info.ManifestNumber != manifestNumber {
		if err := s.source.SetManifestNumber(ctx, invoiceID, manifestNumber); err != nil {
			return fmt.Errorf("write manifest number to invoice %d: %w", invoiceID, err)
		}
	}
	s.bumpStats(ctx)
	return nil
}

// Update overwrites the invoice's summary on its manifest and refolds the
// aggregates. An invoice not yet on any manifest is left to the next attach
// or reconciliation run.
func (s *Service) Update(ctx context.Context, invoiceID int64) error {
	info, err := s.source.InvoiceForManifest(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("load invoice %d: %w", invoiceID, err)
	}

	var manifestNumber string
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.FindSummaryByInvoice(ctx, invoiceID)
		if errors.Is(err, ErrNotFound) {
			s.logger.Info("invoice not on any manifest yet, skipping update",
				slog.Int64("invoice_id", invoiceID))
			return nil
		}
		if err != nil {
			return err
		}
		return s.refreshLocked(ctx, tx, existing, info, &manifestNumber)
	})
	if err != nil {
		return err
	}
	s.bumpStats(ctx)
	return nil
}

// Detach removes the invoice's summary, refolds, and deactivates the
// manifest when it held the last invoice. The manifest number stays taken.
func (s *Service) Detach(ctx context.Context, invoiceID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.FindSummaryByInvoice(ctx, invoiceID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.DeleteSummary(ctx, existing.ID); err != nil {
			return err
		}
		remaining, err := tx.ListSummaries(ctx, existing.ManifestID)
		if err != nil {
			return err
		}
		if err := tx.UpdateTotals(ctx, existing.ManifestID, Recompute(remaining)); err != nil {
			return err
		}
		if len(remaining) == 0 {
			return tx.Deactivate(ctx, existing.ManifestID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.bumpStats(ctx)
	return nil
}

// GetByID retrieves a manifest with its invoice summaries.
func (s *Service) GetByID(ctx context.Context, id int64) (*Manifest, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Invoices, err = s.repo.ListSummaries(ctx, id)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetByNumber retrieves a manifest by its external number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Manifest, error) {
	m, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	m.Invoices, err = s.repo.ListSummaries(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// List returns a paginated manifest list.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Manifest, int, error) {
	return s.repo.List(ctx, req)
}

// DayStats aggregates a day's active manifests, served from cache when warm.
func (s *Service) DayStats(ctx context.Context, date time.Time) (*DayStatsResult, error) {
	loader := func(ctx context.Context) (*DayStatsResult, error) {
		return s.repo.DayStats(ctx, date)
	}
	if s.cache == nil {
		return loader(ctx)
	}
	return s.cache.FetchDayStats(ctx, DayOf(date), loader)
}

func (s *Service) createManifest(ctx context.Context, tx TxRepository, driverID int64, day time.Time) (*Manifest, error) {
	n, err := s.seq.Next(ctx, sequence.KeyManifest)
	if err != nil {
		return nil, fmt.Errorf("allocate manifest number: %w", err)
	}
	return tx.InsertManifest(ctx, Manifest{
		ManifestNumber: sequence.FormatManifestNumber(day, n),
		DriverID:       driverID,
		ManifestDate:   day,
	})
}

func (s *Service) refreshLocked(ctx context.Context, tx TxRepository, existing *InvoiceSummary, info *InvoiceInfo, number *string) error {
	updated := *existing
	updated.GrandTotal = info.GrandTotal
	updated.CashReceived = info.CashReceived
	updated.CreditAmount = info.CreditAmount
	updated.PaymentStatus = info.PaymentStatus
	updated.ProductCount = info.ProductCount
	updated.TotalQuantity = info.TotalQuantity
	if err := tx.UpdateSummary(ctx, updated); err != nil {
		return err
	}
	if err := s.refold(ctx, tx, existing.ManifestID); err != nil {
		return err
	}
	if number != nil {
		m, err := s.repo.GetByID(ctx, existing.ManifestID)
		if err != nil {
			return err
		}
		*number = m.ManifestNumber
	}
	return nil
}

func (s *Service) refold(ctx context.Context, tx TxRepository, manifestID int64) error {
	summaries, err := tx.ListSummaries(ctx, manifestID)
	if err != nil {
		return err
	}
	return tx.UpdateTotals(ctx, manifestID, Recompute(summaries))
}

func (s *Service) bumpStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("manifest stats cache bump failed", slog.Any("error", err))
	}
}
