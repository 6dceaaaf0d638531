package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vibecodezero/subscriber-service/internal/domain"
)

// FileAdapter persists subscribers as a single JSON array file. Every
// mutation is a load-modify-save cycle serialized by a process-wide mutex,
// written via temp file + rename so a crash never leaves a torn file.
type FileAdapter struct {
	path string
	mu   sync.Mutex
}

// NewFileAdapter creates the backing file (and parent directory) when absent.
func NewFileAdapter(path string) (*FileAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, Unavailable(err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeFileAtomic(path, []domain.Subscriber{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, Unavailable(err)
	}
	return &FileAdapter{path: path}, nil
}

func (a *FileAdapter) FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	subs, err := a.load()
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].Email == email {
			sub := subs[i]
			return &sub, nil
		}
	}
	return nil, ErrNotFound
}

func (a *FileAdapter) FindByToken(ctx context.Context, token string) (*domain.Subscriber, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	subs, err := a.load()
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].UnsubscribeToken == token {
			sub := subs[i]
			return &sub, nil
		}
	}
	return nil, ErrNotFound
}

func (a *FileAdapter) Insert(ctx context.Context, sub *domain.Subscriber) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	subs, err := a.load()
	if err != nil {
		return err
	}
	for i := range subs {
		if subs[i].Email == sub.Email {
			return ErrDuplicateKey
		}
	}
	subs = append(subs, *sub)
	return writeFileAtomic(a.path, subs)
}

func (a *FileAdapter) UpdateStatus(ctx context.Context, email string, status domain.SubscriberStatus) (*domain.Subscriber, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	subs, err := a.load()
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].Email == email {
			subs[i].Status = status
			subs[i].UpdatedAt = time.Now().UTC()
			if err := writeFileAtomic(a.path, subs); err != nil {
				return nil, err
			}
			sub := subs[i]
			return &sub, nil
		}
	}
	return nil, ErrNotFound
}

func (a *FileAdapter) Count(ctx context.Context, filter Filter) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	subs, err := a.load()
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range subs {
		if matches(&subs[i], filter) {
			count++
		}
	}
	return count, nil
}

func (a *FileAdapter) List(ctx context.Context, page, pageSize int, filter Filter) (*Page, error) {
	if err := validatePagination(page, pageSize); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	subs, err := a.load()
	if err != nil {
		return nil, err
	}

	filtered := make([]domain.Subscriber, 0, len(subs))
	for i := range subs {
		if matches(&subs[i], filter) {
			filtered = append(filtered, subs[i])
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].SubscribedAt.After(filtered[j].SubscribedAt)
	})

	start := (page - 1) * pageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	return &Page{Records: filtered[start:end], TotalCount: len(filtered)}, nil
}

func (a *FileAdapter) CountBySource(ctx context.Context) ([]domain.SourceCount, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	subs, err := a.load()
	if err != nil {
		return nil, err
	}
	bySource := make(map[string]*domain.SourceCount)
	for i := range subs {
		sc, ok := bySource[subs[i].Source]
		if !ok {
			sc = &domain.SourceCount{Source: subs[i].Source}
			bySource[subs[i].Source] = sc
		}
		sc.Count++
		if subs[i].Status == domain.SubscriberStatusActive {
			sc.Active++
		}
	}
	out := make([]domain.SourceCount, 0, len(bySource))
	for _, sc := range bySource {
		out = append(out, *sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

func (a *FileAdapter) load() ([]domain.Subscriber, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, Unavailable(err)
	}
	var subs []domain.Subscriber
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, Unavailable(fmt.Errorf("corrupt subscribers file: %w", err))
	}
	return subs, nil
}

func writeFileAtomic(path string, subs []domain.Subscriber) error {
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return Unavailable(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".subscribers-*.json")
	if err != nil {
		return Unavailable(err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Unavailable(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Unavailable(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return Unavailable(err)
	}
	return nil
}
