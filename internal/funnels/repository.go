// Package funnels is the funnel repository: CRUD over funnel documents,
// default-value merging and the one-time legacy migration.
package funnels

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"quiz-funnels/internal/common/config"
	apperrors "quiz-funnels/internal/common/errors"
	"quiz-funnels/internal/common/logger"
	"quiz-funnels/internal/common/metrics"
	"quiz-funnels/internal/docstore"
	"quiz-funnels/internal/flagstore"
	"quiz-funnels/internal/models"
)

const tracerName = "quiz-funnels/funnels"

// Publisher receives a change event after every successful mutation.
type Publisher interface {
	Publish(event models.ChangeEvent)
}

type Config struct {
	Collection string
	Timeout    time.Duration
	Migration  config.MigrationConfig
}

type Repository struct {
	store     docstore.Store
	flags     flagstore.Store
	publisher Publisher
	log       logger.Logger
	cfg       Config

	migrationMu      sync.Mutex
	migrationChecked bool
}

// NewRepository builds a repository. flags and publisher may be nil: without
// flags the legacy migration never runs, without a publisher no events are
// sent.
func NewRepository(cfg Config, store docstore.Store, flags flagstore.Store, publisher Publisher, log logger.Logger) *Repository {
	if cfg.Collection == "" {
		cfg.Collection = "funnels"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Repository{
		store:     store,
		flags:     flags,
		publisher: publisher,
		log:       log.WithFields(map[string]interface{}{"component": "funnel-repository"}),
		cfg:       cfg,
	}
}

// List returns every funnel with its data completed from the defaults. The
// first successful call of the process also runs the legacy migration and,
// when it imports anything, lists again so the result includes it.
func (r *Repository) List(ctx context.Context) ([]models.Funnel, error) {
	funnels, err := r.list(ctx)
	if err != nil {
		return nil, err
	}

	if !r.claimMigration() {
		return funnels, nil
	}

	migratedID, err := r.migrateLegacy(ctx)
	if err != nil || migratedID != "" {
		metrics.Migrations.WithLabelValues(metrics.StatusOf(err)).Inc()
	}
	if err != nil {
		r.log.WithError(err).Warn("Legacy migration failed", map[string]interface{}{"funnel_id": migratedID})
	}
	if migratedID == "" {
		return funnels, nil
	}

	r.log.Info("Legacy quiz data migrated", map[string]interface{}{"funnel_id": migratedID})
	r.publish(models.ChangeEvent{Action: models.ChangeReload, FunnelID: migratedID, Details: "legacy data migrated"})

	return r.list(ctx)
}

func (r *Repository) list(ctx context.Context) ([]models.Funnel, error) {
	var docs []docstore.Document
	err := r.observe(ctx, "list", "", func(ctx context.Context) error {
		var err error
		docs, err = r.store.List(ctx, r.cfg.Collection)
		return err
	})
	if err != nil {
		return nil, r.translate("list", "", err)
	}

	funnels := make([]models.Funnel, 0, len(docs))
	for _, doc := range docs {
		funnels = append(funnels, r.decode(doc))
	}
	return funnels, nil
}

// Get returns one funnel or a NOT_FOUND error.
func (r *Repository) Get(ctx context.Context, id string) (*models.Funnel, error) {
	var doc *docstore.Document
	err := r.observe(ctx, "get", id, func(ctx context.Context) error {
		var err error
		doc, err = r.store.Get(ctx, r.cfg.Collection, id)
		return err
	})
	if err != nil {
		return nil, r.translate("get", id, err)
	}

	funnel := r.decode(*doc)
	return &funnel, nil
}

// Create persists a funnel holding the default data.
func (r *Repository) Create(ctx context.Context, name string) (*models.Funnel, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("Funnel name cannot be empty!", "")
	}

	funnel := models.Funnel{Name: name, Data: models.DefaultFunnelData()}
	id, err := r.add(ctx, funnel)
	if err != nil {
		return nil, err
	}
	funnel.ID = id

	r.publish(models.ChangeEvent{Action: models.ChangeCreated, FunnelID: id, Details: name})
	return &funnel, nil
}

func (r *Repository) add(ctx context.Context, funnel models.Funnel) (string, error) {
	data, err := docstore.ToFields(funnel.Data)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	fields := map[string]interface{}{"name": funnel.Name, "data": data}

	var id string
	err = r.observe(ctx, "create", "", func(ctx context.Context) error {
		var err error
		id, err = r.store.Add(ctx, r.cfg.Collection, fields)
		return err
	})
	if err != nil {
		return "", r.translate("create", "", err)
	}
	return id, nil
}

// Update replaces the data of a funnel. Name and id are untouched.
func (r *Repository) Update(ctx context.Context, id string, data models.FunnelData) error {
	fields, err := docstore.ToFields(data)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	err = r.observe(ctx, "update", id, func(ctx context.Context) error {
		return r.store.Update(ctx, r.cfg.Collection, id, map[string]interface{}{"data": fields})
	})
	if err != nil {
		return r.translate("update", id, err)
	}

	r.publish(models.ChangeEvent{Action: models.ChangeUpdated, FunnelID: id})
	return nil
}

// Delete removes a funnel. Deleting a missing funnel succeeds.
func (r *Repository) Delete(ctx context.Context, id string) error {
	err := r.observe(ctx, "delete", id, func(ctx context.Context) error {
		return r.store.Delete(ctx, r.cfg.Collection, id)
	})
	if err != nil {
		return r.translate("delete", id, err)
	}

	r.publish(models.ChangeEvent{Action: models.ChangeDeleted, FunnelID: id})
	return nil
}

func (r *Repository) decode(doc docstore.Document) models.Funnel {
	funnel := models.Funnel{ID: doc.ID, Name: doc.StringField("name")}

	raw, err := doc.FieldJSON("data")
	if err == nil {
		funnel.Data, err = models.MergeFunnelData(raw)
	}
	if err != nil {
		// unreadable data falls back to the defaults; the funnel stays listed
		r.log.WithError(err).Warn("Funnel data could not be decoded", map[string]interface{}{"funnel_id": doc.ID})
		funnel.Data = models.DefaultFunnelData()
	}
	return funnel
}

// observe runs one store call under the store timeout, traced and counted.
func (r *Repository) observe(ctx context.Context, operation, id string, fn func(context.Context) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "funnels."+operation)
	defer span.End()
	if id != "" {
		span.SetAttributes(attribute.String("funnel.id", id))
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	status := metrics.StatusOf(err)
	if errors.Is(err, docstore.ErrNotFound) {
		status = "not_found"
	}
	metrics.StoreOperations.WithLabelValues(operation, status).Inc()

	if err != nil && status == metrics.StatusError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) translate(operation, id string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return apperrors.NewNotFoundError("Funnel", id)
	}
	r.log.WithError(err).Error("Funnel store operation failed", map[string]interface{}{
		"operation": operation,
		"funnel_id": id,
	})
	return apperrors.NewStoreUnavailableError(operation, err)
}

func (r *Repository) publish(event models.ChangeEvent) {
	if r.publisher != nil {
		r.publisher.Publish(event)
	}
}
