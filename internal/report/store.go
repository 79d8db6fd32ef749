package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

const jsonContentType = "application/json"

// Index is the document listing every stored report
type Index struct {
	GeneratedAt string    `json:"generatedAt"`
	Reports     []Summary `json:"reports"`
}

// Store persists report documents and maintains the index
type Store struct {
	blob     Blob
	indexKey string
	now      func() time.Time

	mu sync.Mutex // serializes index read-modify-write
}

// NewStore creates a store writing through blob
func NewStore(blob Blob, indexKey string) *Store {
	if indexKey == "" {
		indexKey = "index.json"
	}
	return &Store{blob: blob, indexKey: indexKey, now: time.Now}
}

func reportKey(slug string) string {
	return slug + ".json"
}

// WriteReport stores the document for slug
func (s *Store) WriteReport(ctx context.Context, slug string, payload *Payload) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", slug, err)
	}
	return s.blob.Put(ctx, reportKey(slug), data, jsonContentType)
}

// ReadReport loads the document for slug; nil when none exists
func (s *Store) ReadReport(ctx context.Context, slug string) (*Payload, error) {
	data, err := s.blob.Get(ctx, reportKey(slug))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", slug, err)
	}
	return &p, nil
}

func (s *Store) readIndex(ctx context.Context) (*Index, error) {
	data, err := s.blob.Get(ctx, s.indexKey)
	if errors.Is(err, ErrNotFound) {
		return &Index{GeneratedAt: s.now().UTC().Format(time.RFC3339)}, nil
	}
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}
	return &idx, nil
}

// UpsertSummary replaces the index entry with the same slug, or appends it
func (s *Store) UpsertSummary(ctx context.Context, summary Summary, mode RefreshMode) error {
	if !mode.Valid() {
		return fmt.Errorf("refresh mode must be %q or %q, got %q", RefreshScheduled, RefreshOnDemand, mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.readIndex(ctx)
	if err != nil {
		return err
	}

	summary.RefreshMode = mode
	replaced := false
	for i := range idx.Reports {
		if idx.Reports[i].Slug == summary.Slug {
			idx.Reports[i] = summary
			replaced = true
			break
		}
	}
	if !replaced {
		idx.Reports = append(idx.Reports, summary)
	}
	idx.GeneratedAt = s.now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	return s.blob.Put(ctx, s.indexKey, data, jsonContentType)
}

// ListReports returns every index entry
func (s *Store) ListReports(ctx context.Context) ([]Summary, error) {
	idx, err := s.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Reports, nil
}
