package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meridian-dms/meridian-dms/internal/ledger"
	"github.com/meridian-dms/meridian-dms/internal/party"
	"github.com/meridian-dms/meridian-dms/internal/sequence"
	"github.com/meridian-dms/meridian-dms/internal/stock"
)

// PartyDirectory resolves customer and staff references.
type PartyDirectory interface {
	GetCustomer(ctx context.Context, id int64) (*party.Customer, error)
	GetEmployee(ctx context.Context, id int64) (*party.Employee, error)
}

// StockAllocator selects the batch an invoice line draws from.
type StockAllocator interface {
	Allocate(ctx context.Context, productID int64, requested float64) (stock.Allocation, error)
}

// ManifestSync hands manifest bookkeeping to the background queue. Every
// method is best-effort from the caller's point of view: the financial
// transaction has already committed when these run.
type ManifestSync interface {
	EnqueueAttach(ctx context.Context, invoiceID int64) error
	EnqueueRefresh(ctx context.Context, invoiceID int64) error
	EnqueueDetach(ctx context.Context, invoiceID int64) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// AllowBelowMinimumPrice disables the batch minimum price floor globally.
	AllowBelowMinimumPrice bool
}

// Service coordinates invoice issuance: validation, batch allocation,
// financial computation, atomic persistence with the ledger posting, and the
// deferred manifest synchronization.
type Service struct {
	repo     Repository
	parties  PartyDirectory
	stock    StockAllocator
	seq      sequence.Allocator
	sync     ManifestSync
	logger   *slog.Logger
	allowMin bool
}

// NewService creates a new service.
func NewService(repo Repository, parties PartyDirectory, allocator StockAllocator, seq sequence.Allocator, logger *slog.Logger, cfg ServiceConfig) *Service {
	return &Service{
		repo:     repo,
		parties:  parties,
		stock:    allocator,
		seq:      seq,
		logger:   logger,
		allowMin: cfg.AllowBelowMinimumPrice,
	}
}

// SetManifestSync sets the queue client for manifest bookkeeping.
func (s *Service) SetManifestSync(sync ManifestSync) {
	s.sync = sync
}

// Create issues an invoice. The invoice and its ledger entry commit in one
// transaction; manifest attachment runs afterwards and its failure never
// fails the call.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Invoice, error) {
	if err := ValidateCreateRequest(req); err != nil {
		return nil, err
	}

	customer, err := s.parties.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, party.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	driver, err := s.parties.GetEmployee(ctx, req.DriverID)
	if err != nil {
		if errors.Is(err, party.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("get driver: %w", err)
	}
	if !driver.CanDrive() {
		return nil, fmt.Errorf("employee %d: %w", driver.ID, ErrNotADriver)
	}

	salesman, err := s.parties.GetEmployee(ctx, req.SalesmanID)
	if err != nil {
		if errors.Is(err, party.ErrNotFound) {
			return nil, ErrSalesmanNotFound
		}
		return nil, fmt.Errorf("get salesman: %w", err)
	}
	if !salesman.CanSell() {
		return nil, fmt.Errorf("employee %d: %w", salesman.ID, ErrNotASalesman)
	}

	// Allocate and compute line by line, preserving request order. The first
	// allocation failure aborts the whole invoice.
	lines := make([]LineItem, 0, len(req.Lines))
	lineTotals := make([]float64, 0, len(req.Lines))
	for i, reqLine := range req.Lines {
		alloc, err := s.stock.Allocate(ctx, reqLine.ProductID, reqLine.Quantity)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}

		if !req.LessToMinimum && !s.allowMin && reqLine.Price < alloc.MinimumPrice {
			return nil, fmt.Errorf("line %d: price %.2f under minimum %.2f: %w",
				i+1, reqLine.Price, alloc.MinimumPrice, ErrPriceBelowMinimum)
		}

		result := ComputeLine(LineInput{
			Quantity:           reqLine.Quantity,
			Bonus:              reqLine.Bonus,
			Price:              reqLine.Price,
			PercentageDiscount: reqLine.PercentageDiscount,
			FlatDiscount:       reqLine.FlatDiscount,
		})

		lines = append(lines, LineItem{
			ProductID:             reqLine.ProductID,
			BatchNumber:           alloc.BatchNumber,
			Expiry:                alloc.Expiry,
			Quantity:              reqLine.Quantity,
			Bonus:                 reqLine.Bonus,
			TotalQuantity:         result.TotalQuantity,
			Price:                 reqLine.Price,
			MinimumPrice:          alloc.MinimumPrice,
			PercentageDiscount:    result.PercentageDiscount,
			FlatDiscount:          result.FlatDiscount,
			TotalAmount:           result.TotalAmount,
			EffectiveCostPerPiece: result.EffectiveCostPerPiece,
			AvailableStock:        alloc.AvailableStock,
			LineOrder:             i,
		})
		lineTotals = append(lineTotals, result.TotalAmount)
	}

	subTotal, grandTotal := ComputeTotals(lineTotals, req.TotalDiscount)
	credit := DeriveCredit(grandTotal, req.CashReceived, req.CreditAmount)
	status := DerivePaymentStatus(req.CashReceived, grandTotal)

	seq, err := s.seq.Next(ctx, sequence.KeyInvoice)
	if err != nil {
		return nil, fmt.Errorf("allocate invoice number: %w", err)
	}
	number := sequence.FormatInvoiceNumber(seq)
	deliveryArea := fmt.Sprintf("%s %s", driver.Area, req.InvoiceDate.Format("02-Jan-2006"))

	var invoiceID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ledgerID, err := tx.PostReceivable(ctx, ledger.ReceivableInput{
			AccountID: customer.ID,
			Cash:      req.CashReceived,
			Credit:    credit,
			Date:      req.InvoiceDate,
			Remarks:   fmt.Sprintf("Invoice %s - %s", number, customer.Name),
			SourceRef: number,
		})
		if err != nil {
			return fmt.Errorf("post receivable: %w", err)
		}

		inv := Invoice{
			InvoiceNumber: number,
			InvoiceDate:   req.InvoiceDate,
			CustomerID:    customer.ID,
			DriverID:      driver.ID,
			SalesmanID:    salesman.ID,
			DeliveryArea:  deliveryArea,
			SubTotal:      subTotal,
			TotalDiscount: req.TotalDiscount,
			GrandTotal:    grandTotal,
			CashReceived:  req.CashReceived,
			CreditAmount:  credit,
			PaymentStatus: status,
			LedgerEntryID: ledgerID,
		}
		id, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		invoiceID = id

		for i := range lines {
			lines[i].InvoiceID = id
			if _, err := tx.InsertLine(ctx, lines[i]); err != nil {
				return fmt.Errorf("insert line %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deferSync(ctx, invoiceID, "attach", func(ctx context.Context) error {
		return s.sync.EnqueueAttach(ctx, invoiceID)
	})

	return s.repo.GetByID(ctx, invoiceID)
}

// UpdatePayment rewrites an invoice's payment fields together with the linked
// ledger entry, then refreshes its manifest summary best-effort.
func (s *Service) UpdatePayment(ctx context.Context, id int64, req UpdatePaymentRequest) (*Invoice, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.IsActive {
		return nil, ErrInvoiceInactive
	}

	credit := DeriveCredit(existing.GrandTotal, req.CashReceived, req.CreditAmount)
	status := DerivePaymentStatus(req.CashReceived, existing.GrandTotal)
	remarks := fmt.Sprintf("Invoice %s payment updated", existing.InvoiceNumber)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdatePayment(ctx, id, req.CashReceived, credit, status); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if err := tx.UpdateReceivable(ctx, existing.LedgerEntryID, req.CashReceived, credit, remarks); err != nil {
			return fmt.Errorf("update receivable: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deferSync(ctx, id, "refresh", func(ctx context.Context) error {
		return s.sync.EnqueueRefresh(ctx, id)
	})

	return s.repo.GetByID(ctx, id)
}

// Delete soft-deactivates an invoice and voids its ledger entry, then removes
// it from its manifest best-effort. The invoice number is never reused.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !existing.IsActive {
		return ErrInvoiceInactive
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Deactivate(ctx, id); err != nil {
			return fmt.Errorf("deactivate invoice: %w", err)
		}
		if err := tx.VoidReceivable(ctx, existing.LedgerEntryID); err != nil {
			return fmt.Errorf("void receivable: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.deferSync(ctx, id, "detach", func(ctx context.Context) error {
		return s.sync.EnqueueDetach(ctx, id)
	})

	return nil
}

// GetByID retrieves an invoice by ID.
func (s *Service) GetByID(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

// GetWithDetails retrieves an invoice with display data.
func (s *Service) GetWithDetails(ctx context.Context, id int64) (*WithDetails, error) {
	return s.repo.GetWithDetails(ctx, id)
}

// List returns a paginated invoice list.
func (s *Service) List(ctx context.Context, req ListRequest) ([]WithDetails, int, error) {
	return s.repo.List(ctx, req)
}

// deferSync runs a manifest queue operation after the financial transaction
// committed. Failures are logged and left to reconciliation; they never
// surface to the caller.
func (s *Service) deferSync(ctx context.Context, invoiceID int64, op string, fn func(context.Context) error) {
	if s.sync == nil {
		return
	}
	if err := fn(ctx); err != nil {
		s.logger.Warn("manifest sync deferred to reconciliation",
			slog.Int64("invoice_id", invoiceID),
			slog.String("op", op),
			slog.Any("error", err))
	}
}
