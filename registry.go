package lottery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows a registry listing; zero values match everything
type ListFilter struct {
	Status  LotteryStatus
	Creator string
}

// Registry is the single authority for which lotteries exist. It owns the
// id map and a name index that is unique among non-terminal lotteries
// (a name becomes reusable once its lottery ends, is cancelled or is
// deleted). All structural changes and the startup rehydration share the
// registry lock.
type Registry struct {
	mu sync.RWMutex

	byID   map[string]*Lottery
	byName map[string]string // name -> id, live lotteries only

	store    Store
	autoSave bool

	rnd     RandomSource
	logger  Logger
	monitor *PerformanceMonitor
}

// NewRegistry creates a registry without persistence
func NewRegistry() *Registry {
	return NewRegistryWithStore(nil)
}

// NewRegistryWithStore creates a registry persisting through the given
// store; auto-save starts enabled when a store is present
func NewRegistryWithStore(store Store) *Registry {
	return NewRegistryWithStoreAndLogger(store, nil)
}

// NewRegistryWithStoreAndLogger creates a registry with a custom logger
func NewRegistryWithStoreAndLogger(store Store, logger Logger) *Registry {
	if logger == nil {
		logger = &DefaultLogger{}
	}
	return &Registry{
		byID:     make(map[string]*Lottery),
		byName:   make(map[string]string),
		store:    store,
		autoSave: store != nil,
		rnd:      NewSecureRandomSource(),
		logger:   logger,
		monitor:  NewPerformanceMonitor(),
	}
}

// NewRegistryFromConfig builds the store from configuration and wraps it
// per the circuit breaker settings
func NewRegistryFromConfig(config *Config, logger Logger) (*Registry, error) {
	store, err := NewStoreFromConfig(config, logger)
	if err != nil {
		return nil, err
	}
	r := NewRegistryWithStoreAndLogger(store, logger)
	r.autoSave = config.Storage.AutoSave
	return r, nil
}

// SetStore swaps the persistence backend
func (r *Registry) SetStore(store Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = store
}

// SetAutoSave toggles saving on every mutation
func (r *Registry) SetAutoSave(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autoSave = enabled
}

// Monitor returns the performance monitor
func (r *Registry) Monitor() *PerformanceMonitor { return r.monitor }

// CreateLottery validates the JSON payload, assigns a fresh id and
// registers the new lottery. Fails with a parse error on invalid config
// and with a duplicate-name error when a live lottery holds the name.
func (r *Registry) CreateLottery(ctx context.Context, payload []byte, creator string) (*Lottery, error) {
	data, err := ParseLotteryData(payload)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existingID, taken := r.byName[data.Name]; taken {
		r.mu.Unlock()
		return nil, ErrDuplicateName.WithDetailsf("name %q is held by lottery %s", data.Name, existingID)
	}

	id := uuid.NewString()
	l := newLottery(id, data, creator, time.Now(), r.rnd, r.logger)
	r.byID[id] = l
	r.byName[data.Name] = id
	r.mu.Unlock()

	r.logger.Info("registry: created lottery id=%s name=%q status=%s creator=%s",
		id, data.Name, l.Status(), creator)

	r.autoSaveLottery(ctx, l)
	return l, nil
}

// GetByID returns the lottery with the given id
func (r *Registry) GetByID(id string) (*Lottery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.byID[id]
	if !ok {
		return nil, ErrLotteryNotFound.WithDetailsf("id %s", id)
	}
	return l, nil
}

// GetByName returns the live lottery holding the given name
func (r *Registry) GetByName(name string) (*Lottery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	if !ok {
		return nil, ErrLotteryNotFound.WithDetailsf("name %q", name)
	}
	return r.byID[id], nil
}

// List returns snapshots of every lottery matching the filter
func (r *Registry) List(filter ListFilter) []*LotteryInfo {
	r.mu.RLock()
	lotteries := make([]*Lottery, 0, len(r.byID))
	for _, l := range r.byID {
		lotteries = append(lotteries, l)
	}
	r.mu.RUnlock()

	infos := make([]*LotteryInfo, 0, len(lotteries))
	for _, l := range lotteries {
		info := l.Info()
		if filter.Status != "" && info.Status != filter.Status {
			continue
		}
		if filter.Creator != "" && info.CreatedBy != filter.Creator {
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

// Participate runs one draw attempt against the identified lottery
func (r *Registry) Participate(ctx context.Context, id, userID string) (*ParticipateResult, error) {
	l, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := l.Participate(userID)
	if err != nil {
		r.monitor.RecordRejected()
		return nil, err
	}
	r.monitor.RecordDraw(result.Won, time.Since(started))

	r.autoSaveLottery(ctx, l)
	return result, nil
}

// StartLottery activates a pending lottery ahead of its start time
func (r *Registry) StartLottery(ctx context.Context, id string) error {
	return r.transition(ctx, id, (*Lottery).Start)
}

// EndLottery terminates a lottery
func (r *Registry) EndLottery(ctx context.Context, id string) error {
	return r.transition(ctx, id, (*Lottery).End)
}

// CancelLottery aborts a pending or active lottery
func (r *Registry) CancelLottery(ctx context.Context, id string) error {
	return r.transition(ctx, id, (*Lottery).Cancel)
}

func (r *Registry) transition(ctx context.Context, id string, op func(*Lottery) error) error {
	l, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if err := op(l); err != nil {
		return err
	}

	// Terminal lotteries release their name for reuse
	if l.Status().Terminal() {
		r.mu.Lock()
		if r.byName[l.Name()] == id {
			delete(r.byName, l.Name())
		}
		r.mu.Unlock()
	}

	r.autoSaveLottery(ctx, l)
	return nil
}

// DeleteLottery removes the lottery from the registry and from durable
// storage. Irreversible.
func (r *Registry) DeleteLottery(ctx context.Context, id string) error {
	r.mu.Lock()
	l, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return ErrLotteryNotFound.WithDetailsf("id %s", id)
	}
	delete(r.byID, id)
	if r.byName[l.Name()] == id {
		delete(r.byName, l.Name())
	}
	store := r.store
	r.mu.Unlock()

	r.logger.Info("registry: deleted lottery id=%s name=%q", id, l.Name())

	if store != nil {
		if err := store.DeleteLottery(ctx, id); err != nil {
			r.monitor.RecordSaveFailure()
			return err
		}
	}
	return nil
}

// SaveLottery persists one lottery explicitly. It reports success as a
// boolean and never raises: persistence failures are logged and counted.
func (r *Registry) SaveLottery(ctx context.Context, id string) bool {
	l, err := r.GetByID(id)
	if err != nil {
		return false
	}
	return r.saveThrough(ctx, l)
}

// LoadAll rehydrates the registry from durable storage. Held under the
// registry lock so concurrent creates cannot race the startup load.
// Corrupt records were already skipped by the store; records whose name
// collides with a live in-memory lottery are skipped here and reported.
func (r *Registry) LoadAll(ctx context.Context) error {
	r.mu.Lock()
	store := r.store
	r.mu.Unlock()

	if store == nil {
		return ErrStateLoadFailure.WithDetails("no store configured")
	}

	lotteries, err := store.LoadAll(ctx)
	if err != nil {
		r.monitor.RecordLoadFailure()
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	loaded := 0
	for _, l := range lotteries {
		if _, exists := r.byID[l.ID()]; exists {
			continue
		}
		if !l.Status().Terminal() {
			if _, taken := r.byName[l.Name()]; taken {
				r.logger.Error("registry: skipping stored lottery id=%s, name %q already live", l.ID(), l.Name())
				continue
			}
			r.byName[l.Name()] = l.ID()
		}
		r.byID[l.ID()] = l
		loaded++
	}

	r.logger.Info("registry: rehydrated %d lotteries", loaded)
	return nil
}

// autoSaveLottery persists after a mutation when auto-save is on.
// Failures are best-effort: logged and counted, never propagated, so an
// applied in-memory mutation is not rolled back by a disk fault.
func (r *Registry) autoSaveLottery(ctx context.Context, l *Lottery) {
	r.mu.RLock()
	enabled := r.autoSave && r.store != nil
	r.mu.RUnlock()

	if !enabled {
		return
	}
	r.saveThrough(ctx, l)
}

func (r *Registry) saveThrough(ctx context.Context, l *Lottery) bool {
	r.mu.RLock()
	store := r.store
	r.mu.RUnlock()

	if store == nil {
		return false
	}

	if err := store.SaveLottery(ctx, l); err != nil {
		r.monitor.RecordSaveFailure()
		r.logger.Error("registry: save failed for lottery id=%s: %v", l.ID(), err)
		return false
	}
	r.monitor.RecordSave()
	return true
}
