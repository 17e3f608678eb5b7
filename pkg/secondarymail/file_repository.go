package secondarymail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileEmailRepository implements EmailRepository using file-based storage.
// It mirrors the Postgres repository's semantics, including the uniqueness
// of (central id, address), and is primarily used in tests and small
// single-node deployments.
type FileEmailRepository struct {
	dataDir string
	rows    map[int64]*EmailRow
	nextID  int64
	mutex   sync.RWMutex
}

// fileEmailData represents the structure of data stored in the JSON file
type fileEmailData struct {
	Rows   []*EmailRow `json:"rows"`
	NextID int64       `json:"next_id"`
}

// NewFileEmailRepository creates a new file-based secondary email repository.
func NewFileEmailRepository(dataDir string) (*FileEmailRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileEmailRepository{
		dataDir: dataDir,
		rows:    make(map[int64]*EmailRow),
		nextID:  1,
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

func (r *FileEmailRepository) dataFile() string {
	return filepath.Join(r.dataDir, "secondary_emails.json")
}

func (r *FileEmailRepository) load() error {
	data, err := os.ReadFile(r.dataFile())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var stored fileEmailData
	if err := json.Unmarshal(data, &stored); err != nil {
		return err
	}

	for _, row := range stored.Rows {
		r.rows[row.ID] = row
	}
	if stored.NextID > 0 {
		r.nextID = stored.NextID
	}

	return nil
}

// save persists the current state; callers must hold the write lock.
func (r *FileEmailRepository) save() error {
	stored := fileEmailData{NextID: r.nextID}
	for _, row := range r.rows {
		stored.Rows = append(stored.Rows, row)
	}
	sort.Slice(stored.Rows, func(i, j int) bool { return stored.Rows[i].ID < stored.Rows[j].ID })

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(r.dataFile(), data, 0644)
}

// FindByID implements EmailRepository.FindByID.
func (r *FileEmailRepository) FindByID(ctx context.Context, centralID, id int64) (*EmailRow, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	row, ok := r.rows[id]
	if !ok || row.CentralID != centralID {
		return nil, nil
	}

	copied := *row
	return &copied, nil
}

// FindByAddress implements EmailRepository.FindByAddress.
func (r *FileEmailRepository) FindByAddress(ctx context.Context, centralID int64, address string) (*EmailRow, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	row := r.findByAddressLocked(centralID, address)
	if row == nil {
		return nil, nil
	}

	copied := *row
	return &copied, nil
}

// FindByCentralID implements EmailRepository.FindByCentralID.
func (r *FileEmailRepository) FindByCentralID(ctx context.Context, centralID int64) ([]EmailRow, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var rows []EmailRow
	for _, row := range r.rows {
		if row.CentralID == centralID {
			rows = append(rows, *row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })

	return rows, nil
}

// Insert implements EmailRepository.Insert.
func (r *FileEmailRepository) Insert(ctx context.Context, centralID int64, address string) (*EmailRow, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.findByAddressLocked(centralID, address) != nil {
		return nil, ErrDuplicateAddress
	}

	row := &EmailRow{
		ID:        r.nextID,
		CentralID: centralID,
		Address:   address,
	}
	r.nextID++
	r.rows[row.ID] = row

	if err := r.save(); err != nil {
		delete(r.rows, row.ID)
		return nil, fmt.Errorf("failed to save: %w", err)
	}

	copied := *row
	return &copied, nil
}

// UpdateToken implements EmailRepository.UpdateToken.
func (r *FileEmailRepository) UpdateToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return ErrStorage
	}

	updated := *row
	updated.TokenHash = &tokenHash
	updated.TokenExpiresAt = &expiresAt
	r.rows[id] = &updated

	if err := r.save(); err != nil {
		r.rows[id] = row
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// UpdateAuthenticated implements EmailRepository.UpdateAuthenticated.
func (r *FileEmailRepository) UpdateAuthenticated(ctx context.Context, id int64, ts *time.Time) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return false, nil
	}

	updated := *row
	updated.AuthenticatedAt = ts
	r.rows[id] = &updated

	if err := r.save(); err != nil {
		r.rows[id] = row
		return false, fmt.Errorf("failed to save: %w", err)
	}
	return true, nil
}

// ConfirmWithToken implements EmailRepository.ConfirmWithToken.
func (r *FileEmailRepository) ConfirmWithToken(ctx context.Context, centralID, id int64, tokenHash string, now time.Time) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	row, ok := r.rows[id]
	if !ok ||
		row.CentralID != centralID ||
		row.AuthenticatedAt != nil ||
		row.TokenHash == nil ||
		*row.TokenHash != tokenHash ||
		row.TokenExpiresAt == nil ||
		!row.TokenExpiresAt.After(now) {
		return false, nil
	}

	ts := now
	updated := *row
	updated.AuthenticatedAt = &ts
	r.rows[id] = &updated

	if err := r.save(); err != nil {
		r.rows[id] = row
		return false, fmt.Errorf("failed to save: %w", err)
	}
	return true, nil
}

// UpsertPrimarySwap implements EmailRepository.UpsertPrimarySwap.
func (r *FileEmailRepository) UpsertPrimarySwap(ctx context.Context, centralID int64, address string, authenticatedAt *time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	existing := r.findByAddressLocked(centralID, address)
	var updated EmailRow
	if existing == nil {
		updated = EmailRow{
			ID:        r.nextID,
			CentralID: centralID,
			Address:   address,
		}
		r.nextID++
	} else {
		updated = *existing
	}
	updated.AuthenticatedAt = authenticatedAt
	r.rows[updated.ID] = &updated

	if err := r.save(); err != nil {
		if existing == nil {
			delete(r.rows, updated.ID)
		} else {
			r.rows[updated.ID] = existing
		}
		return 0, fmt.Errorf("failed to save: %w", err)
	}
	return updated.ID, nil
}

// Delete implements EmailRepository.Delete.
func (r *FileEmailRepository) Delete(ctx context.Context, centralID, id int64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	row, ok := r.rows[id]
	if !ok || row.CentralID != centralID {
		return ErrNoSuchEmail
	}

	delete(r.rows, id)
	if err := r.save(); err != nil {
		r.rows[id] = row
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// findByAddressLocked returns the live row for (centralID, address);
// callers must hold at least the read lock.
func (r *FileEmailRepository) findByAddressLocked(centralID int64, address string) *EmailRow {
	for _, row := range r.rows {
		if row.CentralID == centralID && row.Address == address {
			return row
		}
	}
	return nil
}
