package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-dms/meridian-dms/internal/ledger"
	"github.com/meridian-dms/meridian-dms/internal/party"
	"github.com/meridian-dms/meridian-dms/internal/stock"
)

type memoryLedgerEntry struct {
	Cash     float64
	Credit   float64
	Remarks  string
	IsActive bool
}

type memoryInvoiceRepo struct {
	invoices    map[int64]*Invoice
	lines       map[int64][]LineItem
	entries     map[int64]*memoryLedgerEntry
	nextID      int64
	nextLineID  int64
	nextEntryID int64

	failInsertLine bool
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{
		invoices: make(map[int64]*Invoice),
		lines:    make(map[int64][]LineItem),
		entries:  make(map[int64]*memoryLedgerEntry),
	}
}

func (r *memoryInvoiceRepo) GetByID(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *inv
	out.Lines = r.lines[id]
	return &out, nil
}

func (r *memoryInvoiceRepo) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	for _, inv := range r.invoices {
		if inv.InvoiceNumber == number {
			out := *inv
			out.Lines = r.lines[inv.ID]
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryInvoiceRepo) GetWithDetails(ctx context.Context, id int64) (*WithDetails, error) {
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &WithDetails{Invoice: *inv}, nil
}

func (r *memoryInvoiceRepo) List(ctx context.Context, req ListRequest) ([]WithDetails, int, error) {
	var out []WithDetails
	for _, inv := range r.invoices {
		if !inv.IsActive {
			continue
		}
		out = append(out, WithDetails{Invoice: *inv})
	}
	return out, len(out), nil
}

func (r *memoryInvoiceRepo) ListActiveRefs(ctx context.Context) ([]ActiveRef, error) {
	var out []ActiveRef
	for _, inv := range r.invoices {
		if !inv.IsActive {
			continue
		}
		out = append(out, ActiveRef{
			ID:             inv.ID,
			InvoiceNumber:  inv.InvoiceNumber,
			InvoiceDate:    inv.InvoiceDate,
			DriverID:       inv.DriverID,
			ManifestNumber: inv.ManifestNumber,
		})
	}
	return out, nil
}

func (r *memoryInvoiceRepo) SetManifestNumber(ctx context.Context, id int64, number string) error {
	inv, ok := r.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.ManifestNumber = number
	return nil
}

// WithTx snapshots state first and restores it when fn fails, mirroring the
// rollback of the real transaction.
func (r *memoryInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapInvoices := make(map[int64]*Invoice, len(r.invoices))
	for k, v := range r.invoices {
		cp := *v
		snapInvoices[k] = &cp
	}
	snapLines := make(map[int64][]LineItem, len(r.lines))
	for k, v := range r.lines {
		snapLines[k] = append([]LineItem(nil), v...)
	}
	snapEntries := make(map[int64]*memoryLedgerEntry, len(r.entries))
	for k, v := range r.entries {
		cp := *v
		snapEntries[k] = &cp
	}

	if err := fn(ctx, r); err != nil {
		r.invoices = snapInvoices
		r.lines = snapLines
		r.entries = snapEntries
		return err
	}
	return nil
}

func (r *memoryInvoiceRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	r.nextID++
	inv.ID = r.nextID
	inv.IsActive = true
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = time.Now()
	r.invoices[inv.ID] = &inv
	return inv.ID, nil
}

func (r *memoryInvoiceRepo) InsertLine(ctx context.Context, line LineItem) (int64, error) {
	if r.failInsertLine {
		return 0, errors.New("insert failed")
	}
	r.nextLineID++
	line.ID = r.nextLineID
	r.lines[line.InvoiceID] = append(r.lines[line.InvoiceID], line)
	return line.ID, nil
}

func (r *memoryInvoiceRepo) UpdatePayment(ctx context.Context, id int64, cash, credit float64, status PaymentStatus) error {
	inv, ok := r.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.CashReceived = cash
	inv.CreditAmount = credit
	inv.PaymentStatus = status
	inv.UpdatedAt = time.Now()
	return nil
}

func (r *memoryInvoiceRepo) Deactivate(ctx context.Context, id int64) error {
	inv, ok := r.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.IsActive = false
	return nil
}

func (r *memoryInvoiceRepo) PostReceivable(ctx context.Context, input ledger.ReceivableInput) (int64, error) {
	r.nextEntryID++
	r.entries[r.nextEntryID] = &memoryLedgerEntry{
		Cash:     input.Cash,
		Credit:   input.Credit,
		Remarks:  input.Remarks,
		IsActive: true,
	}
	return r.nextEntryID, nil
}

func (r *memoryInvoiceRepo) UpdateReceivable(ctx context.Context, entryID int64, cash, credit float64, remarks string) error {
	e, ok := r.entries[entryID]
	if !ok {
		return ledger.ErrNotFound
	}
	e.Cash = cash
	e.Credit = credit
	e.Remarks = remarks
	return nil
}

func (r *memoryInvoiceRepo) VoidReceivable(ctx context.Context, entryID int64) error {
	e, ok := r.entries[entryID]
	if !ok {
		return ledger.ErrNotFound
	}
	e.IsActive = false
	return nil
}

type stubParties struct {
	customers map[int64]*party.Customer
	employees map[int64]*party.Employee
}

func (s *stubParties) GetCustomer(ctx context.Context, id int64) (*party.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return nil, party.ErrNotFound
	}
	return c, nil
}

func (s *stubParties) GetEmployee(ctx context.Context, id int64) (*party.Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return nil, party.ErrNotFound
	}
	return e, nil
}

type stubStock struct {
	allocations map[int64]stock.Allocation
	errs        map[int64]error
}

func (s *stubStock) Allocate(ctx context.Context, productID int64, requested float64) (stock.Allocation, error) {
	if err := s.errs[productID]; err != nil {
		return stock.Allocation{}, err
	}
	a, ok := s.allocations[productID]
	if !ok {
		return stock.Allocation{}, stock.ErrNoStock
	}
	return a, nil
}

type stubSequence struct {
	counters map[string]int64
}

func (s *stubSequence) Next(ctx context.Context, key string) (int64, error) {
	if s.counters == nil {
		s.counters = make(map[string]int64)
	}
	s.counters[key]++
	return s.counters[key], nil
}

type recorderSync struct {
	attached  []int64
	refreshed []int64
	detached  []int64
	err       error
}

func (r *recorderSync) EnqueueAttach(ctx context.Context, invoiceID int64) error {
	if r.err != nil {
		return r.err
	}
	r.attached = append(r.attached, invoiceID)
	return nil
}

func (r *recorderSync) EnqueueRefresh(ctx context.Context, invoiceID int64) error {
	if r.err != nil {
		return r.err
	}
	r.refreshed = append(r.refreshed, invoiceID)
	return nil
}

func (r *recorderSync) EnqueueDetach(ctx context.Context, invoiceID int64) error {
	if r.err != nil {
		return r.err
	}
	r.detached = append(r.detached, invoiceID)
	return nil
}

func testFixtures() (*memoryInvoiceRepo, *stubParties, *stubStock, *recorderSync, *Service) {
	repo := newMemoryInvoiceRepo()
	parties := &stubParties{
		customers: map[int64]*party.Customer{
			10: {ID: 10, Code: "PBF01", Name: "Apotek Sehat", Area: "BD", IsActive: true},
		},
		employees: map[int64]*party.Employee{
			20: {ID: 20, Name: "Dedi", Area: "Bandung Utara", Role: party.RoleDriver, IsActive: true},
			21: {ID: 21, Name: "Sari", Area: "Bandung Utara", Role: party.RoleSalesman, IsActive: true},
			22: {ID: 22, Name: "Budi", Area: "Bandung Utara", Role: party.RoleOperator, IsActive: true},
		},
	}
	allocator := &stubStock{
		allocations: map[int64]stock.Allocation{
			100: {BatchNumber: "B2401", Expiry: time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC), AvailableStock: 500, Price: 100, MinimumPrice: 80},
			101: {BatchNumber: "B2402", Expiry: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), AvailableStock: 40, Price: 50, MinimumPrice: 45},
		},
		errs: map[int64]error{},
	}
	sync := &recorderSync{}
	svc := NewService(repo, parties, allocator, &stubSequence{}, slog.New(slog.DiscardHandler), ServiceConfig{})
	svc.SetManifestSync(sync)
	return repo, parties, allocator, sync, svc
}

func validCreateRequest() CreateRequest {
	return CreateRequest{
		InvoiceDate:  time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		CustomerID:   10,
		DriverID:     20,
		SalesmanID:   21,
		CashReceived: 400,
		Lines: []CreateLineReq{
			{ProductID: 100, Quantity: 10, Bonus: 2, Price: 100, PercentageDiscount: 10},
			{ProductID: 101, Quantity: 4, Price: 50, FlatDiscount: 20},
		},
	}
}

func TestCreateInvoice(t *testing.T) {
	repo, _, _, sync, svc := testFixtures()

	inv, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	require.Equal(t, "INV-000001", inv.InvoiceNumber)
	require.Equal(t, "Bandung Utara 29-Aug-2026", inv.DeliveryArea)
	require.Equal(t, float64(1080), inv.SubTotal)
	require.Equal(t, float64(1080), inv.GrandTotal)
	require.Equal(t, float64(400), inv.CashReceived)
	require.Equal(t, float64(680), inv.CreditAmount)
	require.Equal(t, PaymentStatusPartiallyPaid, inv.PaymentStatus)
	require.True(t, inv.IsActive)

	require.Len(t, inv.Lines, 2)
	require.Equal(t, "B2401", inv.Lines[0].BatchNumber)
	require.Equal(t, float64(500), inv.Lines[0].AvailableStock)
	require.Equal(t, float64(900), inv.Lines[0].TotalAmount)
	require.Equal(t, 0, inv.Lines[0].LineOrder)
	require.Equal(t, float64(180), inv.Lines[1].TotalAmount)

	entry := repo.entries[inv.LedgerEntryID]
	require.NotNil(t, entry)
	require.Equal(t, float64(400), entry.Cash)
	require.Equal(t, float64(680), entry.Credit)
	require.True(t, entry.IsActive)
	require.Contains(t, entry.Remarks, "INV-000001")

	require.Equal(t, []int64{inv.ID}, sync.attached)
}

func TestCreateInvoiceExplicitCredit(t *testing.T) {
	_, _, _, _, svc := testFixtures()

	req := validCreateRequest()
	credit := float64(0)
	req.CreditAmount = &credit

	inv, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Zero(t, inv.CreditAmount)
}

func TestCreateInvoiceRejectsUnknownCustomer(t *testing.T) {
	_, _, _, _, svc := testFixtures()

	req := validCreateRequest()
	req.CustomerID = 999

	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestCreateInvoiceRejectsWrongRoles(t *testing.T) {
	_, _, _, _, svc := testFixtures()

	req := validCreateRequest()
	req.DriverID = 22
	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, ErrNotADriver)

	req = validCreateRequest()
	req.SalesmanID = 20
	_, err = svc.Create(context.Background(), req)
	require.ErrorIs(t, err, ErrNotASalesman)
}

func TestCreateInvoicePriceBelowMinimum(t *testing.T) {
	_, _, _, _, svc := testFixtures()

	req := validCreateRequest()
	req.Lines[0].Price = 79

	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, ErrPriceBelowMinimum)

	req.LessToMinimum = true
	inv, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, float64(79), inv.Lines[0].Price)
	require.Equal(t, float64(80), inv.Lines[0].MinimumPrice)
}

func TestCreateInvoiceStockFailureAbortsAll(t *testing.T) {
	repo, _, allocator, sync, svc := testFixtures()
	allocator.errs[101] = stock.ErrInsufficientStock

	_, err := svc.Create(context.Background(), validCreateRequest())
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	require.Empty(t, repo.invoices)
	require.Empty(t, repo.entries)
	require.Empty(t, sync.attached)
}

func TestCreateInvoiceRollsBackLedgerOnLineFailure(t *testing.T) {
	repo, _, _, sync, svc := testFixtures()
	repo.failInsertLine = true

	_, err := svc.Create(context.Background(), validCreateRequest())
	require.Error(t, err)

	require.Empty(t, repo.invoices)
	require.Empty(t, repo.entries)
	require.Empty(t, sync.attached)
}

func TestCreateInvoiceSurvivesSyncFailure(t *testing.T) {
	repo, _, _, sync, svc := testFixtures()
	sync.err = fmt.Errorf("redis down")

	inv, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	require.NotNil(t, repo.invoices[inv.ID])
	require.Empty(t, sync.attached)
}

func TestUpdatePayment(t *testing.T) {
	repo, _, _, sync, svc := testFixtures()

	inv, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	updated, err := svc.UpdatePayment(context.Background(), inv.ID, UpdatePaymentRequest{CashReceived: 1080})
	require.NoError(t, err)
	require.Equal(t, float64(1080), updated.CashReceived)
	require.Zero(t, updated.CreditAmount)
	require.Equal(t, PaymentStatusFullyPaid, updated.PaymentStatus)

	entry := repo.entries[inv.LedgerEntryID]
	require.Equal(t, float64(1080), entry.Cash)
	require.Zero(t, entry.Credit)

	require.Equal(t, []int64{inv.ID}, sync.refreshed)
}

func TestUpdatePaymentInactiveInvoice(t *testing.T) {
	_, _, _, _, svc := testFixtures()

	inv, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), inv.ID))

	_, err = svc.UpdatePayment(context.Background(), inv.ID, UpdatePaymentRequest{CashReceived: 500})
	require.ErrorIs(t, err, ErrInvoiceInactive)
}

func TestDeleteInvoice(t *testing.T) {
	repo, _, _, sync, svc := testFixtures()

	inv, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), inv.ID))

	require.False(t, repo.invoices[inv.ID].IsActive)
	require.False(t, repo.entries[inv.LedgerEntryID].IsActive)
	require.Equal(t, []int64{inv.ID}, sync.detached)

	require.ErrorIs(t, svc.Delete(context.Background(), inv.ID), ErrInvoiceInactive)
}

func TestCreateInvoiceEmptyLines(t *testing.T) {
	_, _, _, _, svc := testFixtures()

	req := validCreateRequest()
	req.Lines = nil

	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, ErrEmptyLines)
}
