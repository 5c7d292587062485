package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"storefront/internal/domain"
)

// FileStore хранилище всего документа в одном JSON-файле.
// Документ держится в памяти, каждая мутация записывает файл целиком.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	log    *slog.Logger
	doc    domain.Document
	lastID int64
	now    func() time.Time
}

// Open loads the document at path. Missing, unreadable or corrupt files are replaced
// with an empty document (corrupt ones are first moved aside); only a failure to
// create the data directory is returned.
func Open(path string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	m := &FileStore{path: path, log: logger, now: time.Now}
	m.doc = m.load()
	m.lastID = maxID(m.doc)
	return m, nil
}

// Path returns the backing file path.
func (m *FileStore) Path() string { return m.path }

func (m *FileStore) load() domain.Document {
	raw, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		m.log.Warn("store_file_missing", "path", m.path)
		return m.reset()
	}
	if err != nil {
		m.log.Warn("store_file_unreadable", "path", m.path, "error", err)
		return m.reset()
	}
	doc, skipped, err := Parse(raw)
	if err != nil {
		aside := m.path + ".corrupt-" + Timestamp(m.now())
		if rerr := os.Rename(m.path, aside); rerr != nil {
			m.log.Error("store_quarantine_failed", "path", m.path, "error", rerr)
			aside = ""
		}
		m.log.Warn("store_file_corrupt", "path", m.path, "moved_to", aside, "error", err)
		return m.reset()
	}
	for _, r := range skipped {
		m.log.Warn("store_record_skipped", "path", m.path, "collection", r.Collection, "index", r.Index, "error", r.Err)
	}
	return doc
}

func (m *FileStore) reset() domain.Document {
	doc := domain.NewDocument()
	if err := m.write(doc); err != nil {
		m.log.Error("store_reset_failed", "path", m.path, "error", err)
	}
	return doc
}

func (m *FileStore) write(doc domain.Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	return writeFileAtomic(m.path, data)
}

// writeFileAtomic writes to a temp file in the same directory and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp) // no-op after a successful rename
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func maxID(doc domain.Document) int64 {
	var top int64
	for _, p := range doc.Products {
		if p.ID > top {
			top = p.ID
		}
	}
	for _, o := range doc.Orders {
		if o.ID > top {
			top = o.ID
		}
	}
	return top
}

// nextIDLocked выдаёт id на основе времени в миллисекундах, строго возрастающий
func (m *FileStore) nextIDLocked() int64 {
	id := m.now().UnixMilli()
	if id <= m.lastID {
		id = m.lastID + 1
	}
	m.lastID = id
	return id
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *FileStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *FileStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *FileStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *FileStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// commit persists immediately outside a transaction; inside one the tx persists on success.
func (m *FileStore) commit(ctx context.Context) error {
	if isTx(ctx) {
		return nil
	}
	return m.persistLocked()
}

func (m *FileStore) persistLocked() error {
	if err := m.write(m.doc); err != nil {
		m.log.Error("store_save_failed", "path", m.path, "error", err)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// Ensure interfaces
var (
	_ ProductRepository  = (*FileStore)(nil)
	_ DocumentRepository = (*FileStore)(nil)
)

// ProductRepository implementation
func (m *FileStore) Create(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p.ID = m.nextIDLocked()
	m.doc.Products = append(m.doc.Products, p.Clone())
	return m.commit(ctx)
}

func (m *FileStore) productIndex(id int64) int {
	for i := range m.doc.Products {
		if m.doc.Products[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *FileStore) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	i := m.productIndex(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	// return copy
	cp := m.doc.Products[i].Clone()
	return &cp, nil
}

func (m *FileStore) Update(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	i := m.productIndex(p.ID)
	if i < 0 {
		return ErrNotFound
	}
	m.doc.Products[i] = p.Clone()
	return m.commit(ctx)
}

func (m *FileStore) Delete(ctx context.Context, id int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	i := m.productIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	m.doc.Products = append(m.doc.Products[:i], m.doc.Products[i+1:]...)
	return m.commit(ctx)
}

func (m *FileStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0)
	for _, p := range m.doc.Products {
		if f.match(p) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (m *FileStore) DecrementStock(ctx context.Context, id, qty int64) (*domain.Product, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	i := m.productIndex(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	p := &m.doc.Products[i]
	if qty > 0 {
		p.Stock -= qty
	}
	if p.Stock < 0 {
		p.Stock = 0
	}
	cp := p.Clone()
	return &cp, m.commit(ctx)
}

// DocumentRepository implementation
func (m *FileStore) Snapshot(ctx context.Context) domain.Document {
	m.rlock(ctx)
	defer m.runlock(ctx)
	return m.doc.Clone()
}

func (m *FileStore) Replace(ctx context.Context, doc domain.Document) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	m.doc = doc.Clone()
	if id := maxID(m.doc); id > m.lastID {
		m.lastID = id
	}
	return m.commit(ctx)
}

func (m *FileStore) BackupFile(ctx context.Context) (string, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		// nothing on disk yet: the in-memory document is the current state
		data, err = Encode(m.doc)
	}
	if err != nil {
		return "", fmt.Errorf("read current document: %w", err)
	}
	target := m.path + ".bak-" + Timestamp(m.now())
	if err := writeFileAtomic(target, data); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return filepath.Base(target), nil
}

// OrderRepository implementation on wrapper type
type FileOrders struct{ store *FileStore }

func NewFileOrders(store *FileStore) *FileOrders { return &FileOrders{store: store} }

var _ OrderRepository = (*FileOrders)(nil)

func (fo *FileOrders) NextID(ctx context.Context) int64 {
	fo.store.wlock(ctx)
	defer fo.store.wunlock(ctx)
	return fo.store.nextIDLocked()
}

func (fo *FileOrders) index(id int64) int {
	for i := range fo.store.doc.Orders {
		if fo.store.doc.Orders[i].ID == id {
			return i
		}
	}
	return -1
}

// Create appends the order; a zero ID gets a fresh one.
func (fo *FileOrders) Create(ctx context.Context, o *domain.Order) error {
	fo.store.wlock(ctx)
	defer fo.store.wunlock(ctx)
	if o.ID == 0 {
		o.ID = fo.store.nextIDLocked()
	} else if fo.index(o.ID) >= 0 {
		return ErrConflict
	}
	o.CreatedAt = fo.store.now().UTC()
	o.UpdatedAt = o.CreatedAt
	fo.store.doc.Orders = append(fo.store.doc.Orders, o.Clone())
	return fo.store.commit(ctx)
}

func (fo *FileOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	fo.store.rlock(ctx)
	defer fo.store.runlock(ctx)
	i := fo.index(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	cp := fo.store.doc.Orders[i].Clone()
	return &cp, nil
}

func (fo *FileOrders) Update(ctx context.Context, o *domain.Order) error {
	fo.store.wlock(ctx)
	defer fo.store.wunlock(ctx)
	i := fo.index(o.ID)
	if i < 0 {
		return ErrNotFound
	}
	o.UpdatedAt = fo.store.now().UTC()
	fo.store.doc.Orders[i] = o.Clone()
	return fo.store.commit(ctx)
}

func (fo *FileOrders) Delete(ctx context.Context, id int64) error {
	fo.store.wlock(ctx)
	defer fo.store.wunlock(ctx)
	i := fo.index(id)
	if i < 0 {
		return ErrNotFound
	}
	fo.store.doc.Orders = append(fo.store.doc.Orders[:i], fo.store.doc.Orders[i+1:]...)
	return fo.store.commit(ctx)
}

func (fo *FileOrders) List(ctx context.Context) ([]domain.Order, error) {
	fo.store.rlock(ctx)
	defer fo.store.runlock(ctx)
	out := make([]domain.Order, 0, len(fo.store.doc.Orders))
	for _, o := range fo.store.doc.Orders {
		out = append(out, o.Clone())
	}
	return out, nil
}

// SubscriptionRepository implementation on wrapper type
type FileSubscriptions struct{ store *FileStore }

func NewFileSubscriptions(store *FileStore) *FileSubscriptions {
	return &FileSubscriptions{store: store}
}

var _ SubscriptionRepository = (*FileSubscriptions)(nil)

// Add registers s unless its endpoint is already known; reports whether it was added.
func (sr *FileSubscriptions) Add(ctx context.Context, s domain.PushSubscription) (bool, error) {
	sr.store.wlock(ctx)
	defer sr.store.wunlock(ctx)
	for _, cur := range sr.store.doc.PushSubscriptions {
		if cur.Endpoint == s.Endpoint {
			return false, nil
		}
	}
	sr.store.doc.PushSubscriptions = append(sr.store.doc.PushSubscriptions, s.Clone())
	return true, sr.store.commit(ctx)
}

func (sr *FileSubscriptions) Remove(ctx context.Context, endpoint string) (bool, error) {
	n, err := sr.RemoveMany(ctx, []string{endpoint})
	return n > 0, err
}

// RemoveMany drops every listed endpoint and writes the document once.
func (sr *FileSubscriptions) RemoveMany(ctx context.Context, endpoints []string) (int, error) {
	if len(endpoints) == 0 {
		return 0, nil
	}
	drop := make(map[string]struct{}, len(endpoints))
	for _, e := range endpoints {
		drop[e] = struct{}{}
	}
	sr.store.wlock(ctx)
	defer sr.store.wunlock(ctx)
	kept := sr.store.doc.PushSubscriptions[:0]
	removed := 0
	for _, s := range sr.store.doc.PushSubscriptions {
		if _, ok := drop[s.Endpoint]; ok {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	sr.store.doc.PushSubscriptions = kept
	if removed == 0 {
		return 0, nil
	}
	return removed, sr.store.commit(ctx)
}

func (sr *FileSubscriptions) List(ctx context.Context) ([]domain.PushSubscription, error) {
	sr.store.rlock(ctx)
	defer sr.store.runlock(ctx)
	out := make([]domain.PushSubscription, 0, len(sr.store.doc.PushSubscriptions))
	for _, s := range sr.store.doc.PushSubscriptions {
		out = append(out, s.Clone())
	}
	return out, nil
}

// Tx manager: one write lock per transaction, rollback on error, single save on success
type FileTx struct{ store *FileStore }

func NewFileTx(store *FileStore) *FileTx { return &FileTx{store: store} }

var _ TxManager = (*FileTx)(nil)

func (tx *FileTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if isTx(ctx) {
		return fn(ctx)
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	before := tx.store.doc.Clone()
	lastID := tx.store.lastID
	ctx = context.WithValue(ctx, txKey{}, true)
	if err := fn(ctx); err != nil {
		tx.store.doc = before
		tx.store.lastID = lastID
		return err
	}
	return tx.store.persistLocked()
}
