package document

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/uihost/internal/abi"
	"github.com/GriffinCanCode/uihost/internal/dom"
	"github.com/GriffinCanCode/uihost/internal/guest"
	"github.com/GriffinCanCode/uihost/internal/sandbox"
	"github.com/GriffinCanCode/uihost/internal/shared/id"
	"github.com/GriffinCanCode/uihost/internal/store"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrClosed          = errors.New("document closed")
	ErrLeak            = errors.New("store not empty after close")
	ErrInvalidViewport = errors.New("invalid viewport")
	ErrNoEngine        = errors.New("no engine for guest")
	ErrMainFailed      = errors.New("guest main failed")
)

// Observer receives document, store and guest call events
type Observer interface {
	store.Observer
	sandbox.Observer
	DocumentOpened(engine sandbox.Engine)
	DocumentClosed(engine sandbox.Engine)
}

// Manager owns every hosted document
type Manager struct {
	mu   sync.RWMutex
	docs map[id.DocumentID]*Document // Protected by mu

	wasm     *sandbox.WasmEngine
	pool     *sandbox.Pool
	observer Observer
	logger   *zap.Logger
	created  int
}

// ManagerStats summarizes the manager
type ManagerStats struct {
	Active   int                    `json:"active"`
	Created  int                    `json:"created"`
	ByEngine map[sandbox.Engine]int `json:"by_engine"`
	Pool     *sandbox.PoolStats     `json:"pool,omitempty"`
	Modules  int                    `json:"compiled_modules"`
}

// NewManager creates a manager. Either engine may be nil, in which case
// guests for it are refused.
func NewManager(wasm *sandbox.WasmEngine, pool *sandbox.Pool) *Manager {
	return &Manager{
		docs:   make(map[id.DocumentID]*Document),
		wasm:   wasm,
		pool:   pool,
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger
func (m *Manager) WithLogger(l *zap.Logger) *Manager {
	if l != nil {
		m.logger = l
	}
	return m
}

// WithObserver adds metrics tracking
func (m *Manager) WithObserver(o Observer) *Manager {
	m.observer = o
	return m
}

// Create instantiates src against a fresh store and tree and runs its
// entry point. A guest whose main traps is torn down and not registered.
func (m *Manager) Create(ctx context.Context, src *guest.Source) (*Document, error) {
	docID := id.NewDocumentID()
	log := m.logger.With(zap.String("document", docID.String()), zap.String("name", src.Name))

	s := store.New().WithLogger(log.Named("store"))
	if m.observer != nil {
		s.WithObserver(m.observer)
	}
	tree := dom.New(s).WithLogger(log.Named("dom"))
	host := abi.NewHost(tree)

	inst, err := m.instantiate(ctx, src, host)
	if err != nil {
		return nil, err
	}
	session := sandbox.NewSession(inst, host).WithLogger(log)
	if m.observer != nil {
		session.WithObserver(m.observer)
	}

	doc := &Document{
		ID:        docID,
		Name:      src.Name,
		Engine:    src.Engine,
		Digest:    src.Digest,
		Origin:    src.Origin,
		CreatedAt: time.Now(),
		dom:       tree,
		session:   session,
	}

	start := time.Now()
	if err := session.Main(ctx); err != nil {
		if _, cerr := doc.close(ctx); cerr != nil {
			log.Error("Teardown after failed main", zap.Error(cerr))
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrMainFailed, src.Name, err)
	}

	m.mu.Lock()
	m.docs[docID] = doc
	m.created++
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.DocumentOpened(src.Engine)
	}
	log.Info("Document created",
		zap.String("engine", string(src.Engine)),
		zap.Int("nodes", tree.Len()),
		zap.Duration("main", time.Since(start)))
	return doc, nil
}

func (m *Manager) instantiate(ctx context.Context, src *guest.Source, host *abi.Host) (sandbox.Instance, error) {
	switch {
	case src.Engine == sandbox.EngineWasm && m.wasm != nil:
		return m.wasm.Load(ctx, src.Code, host)
	case src.Engine == sandbox.EngineJS && m.pool != nil:
		return m.pool.Load(ctx, string(src.Code), host)
	default:
		return nil, fmt.Errorf("%w: %q", ErrNoEngine, src.Engine)
	}
}

// Get retrieves a document by ID
func (m *Manager) Get(docID string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id.DocumentID(docID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	return doc, nil
}

// List returns every document, oldest first
func (m *Manager) List() []*Document {
	m.mu.RLock()
	docs := make([]*Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	m.mu.RUnlock()

	// ULIDs sort by creation time
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

// Close destroys a document. Every node is removed, the store is checked
// for leftovers and the guest is released.
func (m *Manager) Close(ctx context.Context, docID string) error {
	m.mu.Lock()
	doc, ok := m.docs[id.DocumentID(docID)]
	if ok {
		delete(m.docs, doc.ID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}

	n, err := doc.close(ctx)
	if m.observer != nil {
		m.observer.DocumentClosed(doc.Engine)
	}
	if err != nil {
		m.logger.Error("Document close", zap.String("document", docID), zap.Error(err))
		return err
	}
	m.logger.Info("Document closed", zap.String("document", docID), zap.Int("nodes", n))
	return nil
}

// CloseAll closes every document and returns the joined errors
func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for _, doc := range m.List() {
		if err := m.Close(ctx, doc.ID.String()); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns manager statistics
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	st := ManagerStats{
		Active:   len(m.docs),
		Created:  m.created,
		ByEngine: make(map[sandbox.Engine]int),
	}
	for _, doc := range m.docs {
		st.ByEngine[doc.Engine]++
	}
	m.mu.RUnlock()

	if m.pool != nil {
		ps := m.pool.Stats()
		st.Pool = &ps
	}
	if m.wasm != nil {
		st.Modules = m.wasm.Modules()
	}
	return st
}

// Totals sums store and tree sizes across open documents
type Totals struct {
	Nodes       int `json:"nodes"`
	Pointers    int `json:"pointers"`
	Frames      int `json:"frames"`
	Attachments int `json:"attachments"`
}

// Totals walks every document; each one is locked in turn
func (m *Manager) Totals() Totals {
	var t Totals
	for _, doc := range m.List() {
		st := doc.Stats()
		t.Nodes += st.Nodes
		t.Pointers += st.Pointers
		t.Frames += st.Frames
		t.Attachments += st.Attachments
	}
	return t
}
