// Package objectstore provides write-once archive storage for retention
// exports. It defines the Store interface and an in-memory implementation
// suitable for testing and development; production deployments plug in a
// bucket-backed implementation behind the same interface.
package objectstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectExists   = errors.New("object already exists")
	ErrEmptyKey       = errors.New("object key is required")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is a write-once object store. Put refuses to overwrite an existing
// key so an export batch can never be silently replaced.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (*ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, *ObjectInfo, error)
	List(ctx context.Context, prefix string) ([]*ObjectInfo, error)
}

type storedObject struct {
	info ObjectInfo
	data []byte
}

// InMemoryStore is a Store backed by a map.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*storedObject
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{objects: make(map[string]*storedObject)}
}

func (s *InMemoryStore) Put(_ context.Context, key, contentType string, data []byte) (*ObjectInfo, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[key]; exists {
		return nil, ErrObjectExists
	}

	sum := sha256.Sum256(data)
	obj := &storedObject{
		info: ObjectInfo{
			Key:         key,
			ContentType: contentType,
			Size:        int64(len(data)),
			Hash:        hex.EncodeToString(sum[:]),
			CreatedAt:   time.Now().UTC(),
		},
		data: append([]byte(nil), data...),
	}
	s.objects[key] = obj
	info := obj.info
	return &info, nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, *ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, nil, ErrObjectNotFound
	}
	info := obj.info
	return append([]byte(nil), obj.data...), &info, nil
}

func (s *InMemoryStore) List(_ context.Context, prefix string) ([]*ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ObjectInfo
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			info := obj.info
			out = append(out, &info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
