package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-dms/meridian-dms/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskManifestSync carries invoice-to-manifest bookkeeping. Delivery is
	// at-least-once; the aggregator tolerates duplicates.
	TaskManifestSync = "manifest:sync_invoice"
	// TaskReconcileRun triggers a full reconciliation pass.
	TaskReconcileRun = "reconcile:run"
)

// Manifest sync operations.
const (
	OpAttach  = "attach"
	OpRefresh = "refresh"
	OpDetach  = "detach"
)

// ManifestSyncPayload names the invoice and the bookkeeping operation.
type ManifestSyncPayload struct {
	InvoiceID int64  `json:"invoice_id"`
	Op        string `json:"op"`
}

// NewManifestSyncTask constructs an Asynq task.
func NewManifestSyncTask(payload ManifestSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskManifestSync, data), nil
}

// NewReconcileRunTask constructs the reconciliation task.
func NewReconcileRunTask() *asynq.Task {
	return asynq.NewTask(TaskReconcileRun, nil)
}

// ManifestAggregator is the slice of manifest bookkeeping the worker drives.
type ManifestAggregator interface {
	Attach(ctx context.Context, invoiceID int64) error
	Update(ctx context.Context, invoiceID int64) error
	Detach(ctx context.Context, invoiceID int64) error
}

// NewManifestSyncHandler processes TaskManifestSync tasks.
func NewManifestSyncHandler(agg ManifestAggregator, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ManifestSyncPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Error("manifest sync payload unreadable", slog.Any("error", err))
			return asynq.SkipRetry
		}

		tracker := metrics.Track(TaskManifestSync)
		var err error
		switch payload.Op {
		case OpAttach:
			err = agg.Attach(ctx, payload.InvoiceID)
		case OpRefresh:
			err = agg.Update(ctx, payload.InvoiceID)
		case OpDetach:
			err = agg.Detach(ctx, payload.InvoiceID)
		default:
			logger.Error("manifest sync op unknown", slog.String("op", payload.Op))
			return tracker.End(asynq.SkipRetry)
		}
		if err != nil {
			logger.Warn("manifest sync failed, will retry",
				slog.Int64("invoice_id", payload.InvoiceID),
				slog.String("op", payload.Op),
				slog.Any("error", err))
			return tracker.End(fmt.Errorf("manifest sync %s invoice %d: %w", payload.Op, payload.InvoiceID, err))
		}
		return tracker.End(nil)
	}
}

// Reconciler runs the repair pass end to end.
type Reconciler interface {
	Run(ctx context.Context) error
}

// NewReconcileRunHandler processes TaskReconcileRun tasks.
func NewReconcileRunHandler(reconciler Reconciler, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskReconcileRun)
		if err := reconciler.Run(ctx); err != nil {
			logger.Error("scheduled reconciliation failed", slog.Any("error", err))
			return tracker.End(err)
		}
		return tracker.End(nil)
	}
}
