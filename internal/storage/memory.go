package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"crisiswatch/internal/model"
)

// ErrNotFound indicates the requested event id is not archived.
var ErrNotFound = errors.New("storage: attack not found")

// MemoryArchive is an append-only in-memory ThreatArchive. It backs
// scans when no database is configured and fixture pipelines in tests.
// Appends from concurrent scans are serialised by a single writer lock.
type MemoryArchive struct {
	mu      sync.Mutex
	attacks []model.AttackPackage
}

// NewMemoryArchive constructs an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{}
}

// ArchiveAttack appends the package. Re-archiving an event id replaces
// the earlier entry, mirroring the database upsert.
func (m *MemoryArchive) ArchiveAttack(_ context.Context, pkg model.AttackPackage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.attacks {
		if existing.EventID == pkg.EventID {
			m.attacks[i] = pkg
			return nil
		}
	}
	m.attacks = append(m.attacks, pkg)
	return nil
}

// ListRecentAttacks returns up to limit attacks, newest first.
func (m *MemoryArchive) ListRecentAttacks(_ context.Context, limit int) ([]model.AttackPackage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.attacks)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.AttackPackage, 0, n)
	for i := len(m.attacks) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.attacks[i])
	}
	return out, nil
}

// ListAttacksBetween returns attacks archived inside [from, to) in
// ascending archival order.
func (m *MemoryArchive) ListAttacksBetween(_ context.Context, from, to time.Time) ([]model.AttackPackage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.AttackPackage
	for _, pkg := range m.attacks {
		if pkg.ArchivedAt.Before(from) || !pkg.ArchivedAt.Before(to) {
			continue
		}
		out = append(out, pkg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArchivedAt.Before(out[j].ArchivedAt) })
	return out, nil
}

// MarkDeployed flips the deployment flag on an archived attack.
func (m *MemoryArchive) MarkDeployed(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.attacks {
		if m.attacks[i].EventID == eventID {
			m.attacks[i].Deployed = true
			return nil
		}
	}
	return ErrNotFound
}

// CountAttacks counts archived attacks.
func (m *MemoryArchive) CountAttacks(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.attacks)), nil
}

var _ ThreatArchive = (*MemoryArchive)(nil)
