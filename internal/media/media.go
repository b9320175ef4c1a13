// Package media stores uploaded customer images and returns the URLs testimonials reference.
package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedContentType = errors.New("media: unsupported content type")
	ErrEmptyObject            = errors.New("media: empty object")
)

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store persists an object and returns its public URL.
type Store interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

// ImageKey builds a unique object key for an image of projectID, rejecting non-image types.
func ImageKey(projectID string, contentType string) (string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	extension, supported := imageExtensions[mediaType]
	if !supported {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	return path.Join("projects", projectID, "images", uuid.NewString()+extension), nil
}

// MemoryStore keeps objects in memory; it backs tests and single-node development.
type MemoryStore struct {
	mutex   sync.RWMutex
	baseURL string
	objects map[string]memoryObject
}

type memoryObject struct {
	contentType string
	data        []byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]memoryObject),
	}
}

func (store *MemoryStore) Put(_ context.Context, key string, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyObject
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	store.mutex.Lock()
	store.objects[key] = memoryObject{contentType: contentType, data: copied}
	store.mutex.Unlock()
	return store.baseURL + "/" + key, nil
}

// Object returns a stored object and its content type.
func (store *MemoryStore) Object(key string) ([]byte, string, bool) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	object, found := store.objects[key]
	return object.data, object.contentType, found
}

// Len reports how many objects are stored.
func (store *MemoryStore) Len() int {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return len(store.objects)
}
