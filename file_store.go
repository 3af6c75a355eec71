package lottery

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists lotteries under one root directory: an aggregate
// lotteries.json mapping id to metadata record, plus one participant
// ledger file per lottery under participants/. Writes go through a temp
// file and rename, so a crash never leaves a half-written file behind.
type FileStore struct {
	mu sync.Mutex

	dir    string
	rnd    RandomSource
	logger Logger
}

// NewFileStore creates a file store rooted at dir, creating the layout
// if needed
func NewFileStore(dir string) (*FileStore, error) {
	return NewFileStoreWithLogger(dir, nil)
}

// NewFileStoreWithLogger creates a file store with a custom logger
func NewFileStoreWithLogger(dir string, logger Logger) (*FileStore, error) {
	if dir == "" {
		dir = DefaultDataDir
	}
	if logger == nil {
		logger = &DefaultLogger{}
	}

	if err := os.MkdirAll(filepath.Join(dir, ParticipantsDirName), 0o755); err != nil {
		return nil, ErrStateSaveFailure.WithDetailsf("create storage root %q", dir).WithCause(err)
	}

	return &FileStore{
		dir:    dir,
		rnd:    NewSecureRandomSource(),
		logger: logger,
	}, nil
}

// Dir returns the storage root
func (s *FileStore) Dir() string { return s.dir }

// SaveLottery writes the metadata record into the aggregate file and the
// ledger into its own file
func (s *FileStore) SaveLottery(ctx context.Context, l *Lottery) error {
	if err := ctx.Err(); err != nil {
		return ErrStateSaveFailure.WithCause(err)
	}

	record, ledger := l.exportRecord()

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAggregate()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return ErrSerializationFailed.WithDetailsf("lottery %s", l.ID()).WithCause(err)
	}
	all[l.ID()] = raw

	if err := s.writeAggregate(all); err != nil {
		return err
	}

	ledgerRaw, err := json.Marshal(ledger)
	if err != nil {
		return ErrSerializationFailed.WithDetailsf("lottery %s ledger", l.ID()).WithCause(err)
	}
	if err := s.writeFileAtomic(s.ledgerPath(l.ID()), ledgerRaw); err != nil {
		return ErrStateSaveFailure.WithDetailsf("lottery %s ledger", l.ID()).WithCause(err)
	}

	s.logger.Debug("file store: saved lottery id=%s participants=%d", l.ID(), len(ledger))
	return nil
}

// LoadLottery reads one lottery back; (nil, nil) when absent
func (s *FileStore) LoadLottery(ctx context.Context, id string) (*Lottery, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrStateLoadFailure.WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAggregate()
	if err != nil {
		return nil, err
	}
	raw, ok := all[id]
	if !ok {
		return nil, nil
	}

	return s.decodeLocked(id, raw)
}

// LoadAll reads every stored lottery, skipping corrupt records
func (s *FileStore) LoadAll(ctx context.Context) ([]*Lottery, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrStateLoadFailure.WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAggregate()
	if err != nil {
		return nil, err
	}

	lotteries := make([]*Lottery, 0, len(all))
	for id, raw := range all {
		l, decodeErr := s.decodeLocked(id, raw)
		if decodeErr != nil {
			s.logger.Error("file store: skipping corrupt record id=%s: %v", id, decodeErr)
			continue
		}
		lotteries = append(lotteries, l)
	}

	s.logger.Info("file store: loaded %d of %d lotteries from %s", len(lotteries), len(all), s.dir)
	return lotteries, nil
}

// DeleteLottery removes the metadata record and the ledger file
func (s *FileStore) DeleteLottery(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return ErrStateSaveFailure.WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAggregate()
	if err != nil {
		return err
	}
	if _, ok := all[id]; !ok {
		return nil
	}
	delete(all, id)

	if err := s.writeAggregate(all); err != nil {
		return err
	}
	if err := os.Remove(s.ledgerPath(id)); err != nil && !os.IsNotExist(err) {
		return ErrStateSaveFailure.WithDetailsf("remove ledger for %s", id).WithCause(err)
	}

	s.logger.Info("file store: deleted lottery id=%s", id)
	return nil
}

func (s *FileStore) decodeLocked(id string, raw json.RawMessage) (*Lottery, error) {
	var record lotteryRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, ErrStateCorrupted.WithDetailsf("lottery %s", id).WithCause(err)
	}

	ledger := make(map[string]participantRecord)
	ledgerRaw, err := os.ReadFile(s.ledgerPath(id))
	switch {
	case os.IsNotExist(err):
		// No ledger yet, nobody participated
	case err != nil:
		return nil, ErrStateLoadFailure.WithDetailsf("lottery %s ledger", id).WithCause(err)
	default:
		if err := json.Unmarshal(ledgerRaw, &ledger); err != nil {
			return nil, ErrStateCorrupted.WithDetailsf("lottery %s ledger", id).WithCause(err)
		}
	}

	return restoreLottery(id, &record, ledger, s.rnd, s.logger)
}

func (s *FileStore) aggregatePath() string {
	return filepath.Join(s.dir, LotteriesFileName)
}

func (s *FileStore) ledgerPath(id string) string {
	return filepath.Join(s.dir, ParticipantsDirName, id+".json")
}

func (s *FileStore) readAggregate() (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(s.aggregatePath())
	if os.IsNotExist(err) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, ErrStateLoadFailure.WithDetails("read aggregate file").WithCause(err)
	}

	all := make(map[string]json.RawMessage)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &all); err != nil {
			return nil, ErrStateCorrupted.WithDetails("aggregate file is not valid JSON").WithCause(err)
		}
	}
	return all, nil
}

func (s *FileStore) writeAggregate(all map[string]json.RawMessage) error {
	raw, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if err := s.writeFileAtomic(s.aggregatePath(), raw); err != nil {
		return ErrStateSaveFailure.WithDetails("write aggregate file").WithCause(err)
	}
	return nil
}

func (s *FileStore) writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
