package manifest

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryManifestRepo struct {
	manifests     map[int64]*Manifest
	summaries     map[int64][]InvoiceSummary
	nextID        int64
	nextSummaryID int64

	// loseCreateRaceOnce simulates a concurrent attach committing first:
	// the insert fails with the unique-violation error after the competing
	// manifest has appeared.
	loseCreateRaceOnce bool
}

func newMemoryManifestRepo() *memoryManifestRepo {
	return &memoryManifestRepo{
		manifests: make(map[int64]*Manifest),
		summaries: make(map[int64][]InvoiceSummary),
	}
}

func (r *memoryManifestRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryManifestRepo) GetByID(ctx context.Context, id int64) (*Manifest, error) {
	m, ok := r.manifests[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m
	return &out, nil
}

func (r *memoryManifestRepo) GetByNumber(ctx context.Context, number string) (*Manifest, error) {
	for _, m := range r.manifests {
		if m.ManifestNumber == number {
			out := *m
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryManifestRepo) List(ctx context.Context, req ListRequest) ([]Manifest, int, error) {
	var out []Manifest
	for _, m := range r.manifests {
		if req.Active != nil && m.IsActive != *req.Active {
			continue
		}
		out = append(out, *m)
	}
	return out, len(out), nil
}

func (r *memoryManifestRepo) ListSummaries(ctx context.Context, manifestID int64) ([]InvoiceSummary, error) {
	return append([]InvoiceSummary(nil), r.summaries[manifestID]...), nil
}

func (r *memoryManifestRepo) DayStats(ctx context.Context, date time.Time) (*DayStatsResult, error) {
	stats := DayStatsResult{Date: DayOf(date)}
	drivers := map[int64]bool{}
	for _, m := range r.manifests {
		if !m.IsActive || !m.ManifestDate.Equal(stats.Date) {
			continue
		}
		stats.ManifestCount++
		stats.InvoiceCount += m.TotalInvoices
		stats.TotalAmount += m.TotalAmount
		stats.TotalCash += m.TotalCashReceived
		stats.TotalCredit += m.TotalCreditAmount
		stats.TotalQuantity += m.TotalQuantity
		drivers[m.DriverID] = true
	}
	stats.DriversAssigned = len(drivers)
	return &stats, nil
}

func (r *memoryManifestRepo) ActiveManifestNumberFor(ctx context.Context, invoiceID int64) (string, error) {
	s, err := r.FindSummaryByInvoice(context.Background(), invoiceID)
	if err != nil {
		return "", err
	}
	return r.manifests[s.ManifestID].ManifestNumber, nil
}

func (r *memoryManifestRepo) FindActiveForUpdate(ctx context.Context, driverID int64, day time.Time) (*Manifest, error) {
	for _, m := range r.manifests {
		if m.IsActive && m.DriverID == driverID && m.ManifestDate.Equal(DayOf(day)) {
			out := *m
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryManifestRepo) InsertManifest(ctx context.Context, m Manifest) (*Manifest, error) {
	if r.loseCreateRaceOnce {
		r.loseCreateRaceOnce = false
		r.nextID++
		winner := Manifest{
			ID:             r.nextID,
			ManifestNumber: "DL-RACE-WINNER",
			DriverID:       m.DriverID,
			ManifestDate:   DayOf(m.ManifestDate),
			IsActive:       true,
		}
		r.manifests[winner.ID] = &winner
		return nil, ErrDuplicateActive
	}
	for _, existing := range r.manifests {
		if existing.IsActive && existing.DriverID == m.DriverID && existing.ManifestDate.Equal(DayOf(m.ManifestDate)) {
			return nil, ErrDuplicateActive
		}
	}
	r.nextID++
	m.ID = r.nextID
	m.ManifestDate = DayOf(m.ManifestDate)
	m.IsActive = true
	r.manifests[m.ID] = &m
	out := m
	return &out, nil
}

func (r *memoryManifestRepo) FindSummaryByInvoice(ctx context.Context, invoiceID int64) (*InvoiceSummary, error) {
	for manifestID, list := range r.summaries {
		m := r.manifests[manifestID]
		if m == nil || !m.IsActive {
			continue
		}
		for _, s := range list {
			if s.InvoiceID == invoiceID {
				out := s
				return &out, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (r *memoryManifestRepo) InsertSummary(ctx context.Context, s InvoiceSummary) (int64, error) {
	r.nextSummaryID++
	s.ID = r.nextSummaryID
	r.summaries[s.ManifestID] = append(r.summaries[s.ManifestID], s)
	return s.ID, nil
}

func (r *memoryManifestRepo) UpdateSummary(ctx context.Context, s InvoiceSummary) error {
	list := r.summaries[s.ManifestID]
	for i := range list {
		if list[i].ID == s.ID {
			list[i] = s
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryManifestRepo) DeleteSummary(ctx context.Context, id int64) error {
	for manifestID, list := range r.summaries {
		for i := range list {
			if list[i].ID == id {
				r.summaries[manifestID] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return ErrNotFound
}

func (r *memoryManifestRepo) UpdateTotals(ctx context.Context, manifestID int64, totals Totals) error {
	m, ok := r.manifests[manifestID]
	if !ok {
		return ErrNotFound
	}
	m.Totals = totals
	return nil
}

func (r *memoryManifestRepo) Deactivate(ctx context.Context, manifestID int64) error {
	m, ok := r.manifests[manifestID]
	if !ok || !m.IsActive {
		return ErrNotFound
	}
	m.IsActive = false
	return nil
}

type stubInvoiceSource struct {
	invoices map[int64]*InvoiceInfo
}

func (s *stubInvoiceSource) InvoiceForManifest(ctx context.Context, invoiceID int64) (*InvoiceInfo, error) {
	info, ok := s.invoices[invoiceID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *info
	return &out, nil
}

func (s *stubInvoiceSource) SetManifestNumber(ctx context.Context, invoiceID int64, number string) error {
	info, ok := s.invoices[invoiceID]
	if !ok {
		return ErrNotFound
	}
	info.ManifestNumber = number
	return nil
}

type stubSeq struct {
	counters map[string]int64
}

func (s *stubSeq) Next(ctx context.Context, key string) (int64, error) {
	if s.counters == nil {
		s.counters = make(map[string]int64)
	}
	s.counters[key]++
	return s.counters[key], nil
}

var testDay = time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

func manifestFixtures() (*memoryManifestRepo, *stubInvoiceSource, *Service) {
	repo := newMemoryManifestRepo()
	source := &stubInvoiceSource{
		invoices: map[int64]*InvoiceInfo{
			1: {
				InvoiceID: 1, InvoiceNumber: "INV-000001",
				InvoiceDate: testDay.Add(9 * time.Hour), DriverID: 20,
				CustomerName: "Apotek Sehat", CustomerArea: "BD", LicenseNumber: "SIA-123",
				GrandTotal: 900, CashReceived: 300, CreditAmount: 600,
				PaymentStatus: "partially_paid", ProductCount: 2, TotalQuantity: 16,
				IsActive: true,
			},
			2: {
				InvoiceID: 2, InvoiceNumber: "INV-000002",
				InvoiceDate: testDay.Add(11 * time.Hour), DriverID: 20,
				CustomerName: "Apotek Kita", CustomerArea: "BD",
				GrandTotal: 180, CashReceived: 180,
				PaymentStatus: "fully_paid", ProductCount: 1, TotalQuantity: 4,
				IsActive: true,
			},
			3: {
				InvoiceID: 3, InvoiceNumber: "INV-000003",
				InvoiceDate: testDay.Add(13 * time.Hour), DriverID: 30,
				CustomerName: "Apotek Lain", CustomerArea: "JK",
				GrandTotal: 500, CashReceived: 0, CreditAmount: 500,
				PaymentStatus: "unpaid", ProductCount: 1, TotalQuantity: 10,
				IsActive: true,
			},
		},
	}
	svc := NewService(repo, source, &stubSeq{}, nil, slog.New(slog.DiscardHandler))
	return repo, source, svc
}

func TestAttachCreatesManifest(t *testing.T) {
	repo, source, svc := manifestFixtures()

	require.NoError(t, svc.Attach(context.Background(), 1))

	require.Len(t, repo.manifests, 1)
	m := repo.manifests[1]
	require.Equal(t, "DL-20260829-001", m.ManifestNumber)
	require.Equal(t, int64(20), m.DriverID)
	require.Equal(t, testDay, m.ManifestDate)
	require.True(t, m.IsActive)

	require.Equal(t, 1, m.TotalInvoices)
	require.Equal(t, float64(900), m.TotalAmount)
	require.Equal(t, float64(300), m.TotalCashReceived)
	require.Equal(t, float64(600), m.TotalCreditAmount)
	require.Equal(t, 2, m.TotalProductCount)
	require.Equal(t, float64(16), m.TotalQuantity)

	require.Equal(t, "DL-20260829-001", source.invoices[1].ManifestNumber)
}

func TestAttachAppendsToExistingManifest(t *testing.T) {
	repo, _, svc := manifestFixtures()

	require.NoError(t, svc.Attach(context.Background(), 1))
	require.NoError(t, svc.Attach(context.Background(), 2))

	require.Len(t, repo.manifests, 1)
	m := repo.manifests[1]
	require.Equal(t, 2, m.TotalInvoices)
	require.Equal(t, float64(1080), m.TotalAmount)
	require.Equal(t, float64(480), m.TotalCashReceived)
	require.Len(t, repo.summaries[m.ID], 2)
}

func TestAttachSeparatesDrivers(t *testing.T) {
	repo, _, svc := manifestFixtures()

	require.NoError(t, svc.Attach(context.Background(), 1))
	require.NoError(t, svc.Attach(context.Background(), 3))

	require.Len(t, repo.manifests, 2)
}

func TestAttachRedeliveredMessage(t *testing.T) {
	repo, _, svc := manifestFixtures()

	require.NoError(t, svc.Attach(context.Background(), 1))
	require.NoError(t, svc.Attach(context.Background(), 1))

	require.Len(t, repo.manifests, 1)
	m := repo.manifests[1]
	require.Equal(t, 1, m.TotalInvoices)
	require.Len(t, repo.summaries[m.ID], 1)
}

func TestAttachSkipsInactiveInvoice(t *testing.T) {
	repo, source, svc := manifestFixtures()
	source.invoices[1].IsActive = false

	require.NoError(t, svc.Attach(context.Background(), 1))
	require.Empty(t, repo.manifests)
}

func TestAttachLostCreateRaceAppendsToWinner(t *testing.T) {
	repo, source, svc := manifestFixtures()
	repo.loseCreateRaceOnce = true

	require.NoError(t, svc.Attach(context.Background(), 1))

	active := 0
	for _, m := range repo.manifests {
		if m.IsActive {
			active++
			require.Equal(t, "DL-RACE-WINNER", m.ManifestNumber)
			require.Equal(t, 1, m.TotalInvoices)
		}
	}
	require.Equal(t, 1, active)
	require.Equal(t, "DL-RACE-WINNER", source.invoices[1].ManifestNumber)
}

func TestUpdateRefoldsAggregates(t *testing.T) {
	repo, source, svc := manifestFixtures()

	require.NoError(t, svc.Attach(context.Background(), 1))
	require.NoError(t, svc.Attach(context.Background(), 2))

	source.invoices[1].CashReceived = 900
	source.invoices[1].CreditAmount = 0
	source.invoices[1].PaymentStatus = "fully_paid"

	require.NoError(t, svc.Update(context.Background(), 1))

	m := repo.manifests[1]
	require.Equal(t, 2, m.TotalInvoices)
	require.Equal(t, float64(1080), m.TotalAmount)
	require.Equal(t, float64(1080), m.TotalCashReceived)
	require.Zero(t, m.TotalCreditAmount)
}

func TestUpdateUnattachedInvoiceIsNoop(t *testing.T) {
	repo, _, svc := manifestFixtures()

	require.NoError(t, svc.Update(context.Background(), 1))
	require.Empty(t, repo.manifests)
}

func TestDetachRefoldsRemaining(t *testing.T) {
	repo, _, svc := manifestFixtures()

	require.NoError(t, svc.Attach(context.Background(), 1))
	require.NoError(t, svc.Attach(context.Background(), 2))

	require.NoError(t, svc.Detach(context.Background(), 1))

	m := repo.manifests[1]
	require.True(t, m.IsActive)
	require.Equal(t, 1, m.TotalInvoices)
	require.Equal(t, float64(180), m.TotalAmount)
	require.Len(t, repo.summaries[m.ID], 1)
}

func TestDetachLastInvoiceDeactivates(t *testing.T) {
	repo, _, svc := manifestFixtures()

	require.NoError(t, svc.Attach(context.Background(), 1))
	require.NoError(t, svc.Detach(context.Background(), 1))

	m := repo.manifests[1]
	require.False(t, m.IsActive)
	require.Zero(t, m.TotalInvoices)
	require.Equal(t, "DL-20260829-001", m.ManifestNumber)
}

func TestDetachAbsentInvoiceIsNoop(t *testing.T) {
	_, _, svc := manifestFixtures()
	require.NoError(t, svc.Detach(context.Background(), 99))
}

func TestDayStats(t *testing.T) {
	_, _, svc := manifestFixtures()

	require.NoError(t, svc.Attach(context.Background(), 1))
	require.NoError(t, svc.Attach(context.Background(), 2))
	require.NoError(t, svc.Attach(context.Background(), 3))

	stats, err := svc.DayStats(context.Background(), testDay)
	require.NoError(t, err)
	require.Equal(t, 2, stats.ManifestCount)
	require.Equal(t, 3, stats.InvoiceCount)
	require.Equal(t, float64(1580), stats.TotalAmount)
	require.Equal(t, 2, stats.DriversAssigned)
}
