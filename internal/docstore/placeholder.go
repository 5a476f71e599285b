package docstore

import (
	"context"
	"time"
)

// queuePlaceholder enqueues a discovered-but-unknown equipment id for
// asynchronous materialization, so the tick that discovered the gap
// never blocks on the insert.
func (s *Store) queuePlaceholder(id string) {
	select {
	case s.placeholders <- id:
	default:
		s.lg.Warn("placeholder queue full, dropping", "equipmentId", id)
	}
}

func (s *Store) drainPlaceholders() {
	for {
		select {
		case <-s.done:
			return
		case id := <-s.placeholders:
			s.materializePlaceholder(id)
		}
	}
}

func (s *Store) materializePlaceholder(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const q = `
		INSERT INTO equipment (id, kind, location_id, name, control_enabled, controls, created_at, updated_at)
		VALUES ($1, $2, $3, $1, false, '{}', NOW(), NOW())
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, q, id, legacyPlaceholderKind, legacyPlaceholderLocation); err != nil {
		s.lg.Error("failed to materialize placeholder", "equipmentId", id, "error", err)
	}
}
