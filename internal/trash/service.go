package trash

import (
	"context"
	"log/slog"
	"time"

	"github.com/meridian-assist/meridian/internal/platform/objstore"
	"github.com/meridian-assist/meridian/internal/shared"
)

// RepositoryPort defines data access methods for the trash view.
type RepositoryPort interface {
	List(ctx context.Context, cutoff time.Time) ([]Item, error)
	ListExpired(ctx context.Context, cutoff time.Time) ([]Item, error)
	Restore(ctx context.Context, kind ItemKind, id int64) error
	Purge(ctx context.Context, kind ItemKind, id int64) ([]string, error)
}

// Service handles trash business logic. Restores are open to everyone who
// can see the trash; permanent purges need an elevated actor.
type Service struct {
	repo  RepositoryPort
	store objstore.Store
	log   *slog.Logger
	now   func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, store objstore.Store, log *slog.Logger) *Service {
	return &Service{repo: repo, store: store, log: log, now: time.Now}
}

// List returns everything still inside the retention window with the days
// each record has left. Records past retention are the sweeper's business
// and never show up here.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	now := s.now()
	cutoff := now.AddDate(0, 0, -RetentionDays)
	items, err := s.repo.List(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].DaysRemaining = daysRemaining(items[i].DeletedAt, now)
	}
	return items, nil
}

// Restore brings a trashed record back.
func (s *Service) Restore(ctx context.Context, kind ItemKind, id int64) error {
	if !ValidKind(kind) {
		return shared.Validationf("unknown trash kind %q", kind)
	}
	if err := s.repo.Restore(ctx, kind, id); err != nil {
		return err
	}
	s.log.Info("restored from trash", "kind", kind, "id", id)
	return nil
}

// Purge permanently removes one trashed record. Elevated actors only; the
// deletion cascades and cannot be undone.
func (s *Service) Purge(ctx context.Context, actor shared.Actor, kind ItemKind, id int64) error {
	if err := shared.RequireElevated(actor); err != nil {
		return err
	}
	if !ValidKind(kind) {
		return shared.Validationf("unknown trash kind %q", kind)
	}
	keys, err := s.repo.Purge(ctx, kind, id)
	if err != nil {
		return err
	}
	s.deleteObjects(ctx, keys)
	s.log.Info("purged from trash", "kind", kind, "id", id, "objects", len(keys))
	return nil
}

// PurgeExpired removes every record past the retention window. The sweeper
// calls this on its schedule; one stubborn record does not stop the rest.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := s.now().AddDate(0, 0, -RetentionDays)
	expired, err := s.repo.ListExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, item := range expired {
		keys, err := s.repo.Purge(ctx, item.Kind, item.ID)
		if err != nil {
			if shared.KindOf(err) == shared.KindNotFound {
				// already gone, likely cascaded away by a parent purge
				continue
			}
			s.log.Error("purge expired record", "kind", item.Kind, "id", item.ID, "error", err)
			continue
		}
		s.deleteObjects(ctx, keys)
		purged++
	}
	return purged, nil
}

// deleteObjects removes storage blobs best effort. The rows are already
// gone; a leftover blob is an annoyance, not an integrity problem.
func (s *Service) deleteObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Warn("delete stored object", "key", key, "error", err)
		}
	}
}
