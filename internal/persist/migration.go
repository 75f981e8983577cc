package persist

import "sync"

// MigrationState records whether the legacy storage key has already been
// migrated for one client. The first persistor constructed with a state runs
// the migration; later ones skip it.
type MigrationState struct {
	mu   sync.Mutex
	done bool
}

func NewMigrationState() *MigrationState {
	return &MigrationState{}
}

// begin reports whether the caller should migrate, and marks the state done.
func (m *MigrationState) begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return false
	}
	m.done = true
	return true
}

func (m *MigrationState) Done() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// MarkDone skips any future migration, e.g. when the client already migrated
// in an earlier request.
func (m *MigrationState) MarkDone() {
	m.mu.Lock()
	m.done = true
	m.mu.Unlock()
}

// Reset returns the state to "not yet migrated".
func (m *MigrationState) Reset() {
	m.mu.Lock()
	m.done = false
	m.mu.Unlock()
}
