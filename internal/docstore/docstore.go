// Package docstore implements the Document Store Adapter (C2): reads
// and writes for equipment and equipment-group records, realized as
// PostgreSQL with JSONB columns accessed via sqlx. No Mongo/Firestore
// driver was available to wire in, so Postgres stands in rather than
// inventing an unfetchable dependency, grounded on arx-os-arxos's
// PipelineRepository pattern.
package docstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"nrgchamp/equipment-control/internal/model"
)

// Options tunes legacy-compatibility behavior.
type Options struct {
	// StrictEquipmentLookup, when true, returns model.ErrMissingEquipment
	// instead of materializing the legacy placeholder (locationId="4",
	// kind="fan-coil") for an equipment id the document store has never
	// seen. Default false preserves the legacy behavior.
	StrictEquipmentLookup bool

	// SeedFixturePath, when non-empty and the file exists, is read once
	// at startup and its sample equipment/groups are upserted into the
	// database — for local/dev runs against an empty Postgres.
	SeedFixturePath string
}

// Store is the Document Store Adapter.
type Store struct {
	db  *sqlx.DB
	lg  *slog.Logger
	opt Options

	equipmentCache *cache[model.Equipment]
	groupCache     *cache[model.EquipmentGroup]

	placeholders chan string
	done         chan struct{}
}

// New opens the document store connection and starts the background
// placeholder-materialization worker.
func New(dsn string, lg *slog.Logger, opt Options) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if lg == nil {
		lg = slog.Default()
	}
	s := &Store{
		db:             db,
		lg:             lg,
		opt:            opt,
		equipmentCache: newCache[model.Equipment](30 * time.Second),
		groupCache:     newCache[model.EquipmentGroup](30 * time.Second),
		placeholders:   make(chan string, 256),
		done:           make(chan struct{}),
	}
	if err := s.seedFromFixture(opt.SeedFixturePath); err != nil {
		return nil, err
	}
	go s.drainPlaceholders()
	return s, nil
}

// Close stops the placeholder worker and closes the DB pool.
func (s *Store) Close() error {
	close(s.done)
	return s.db.Close()
}

// Ping verifies connectivity, used by the /health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
