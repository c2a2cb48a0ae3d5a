// Package storage is a document store addressed by slash-delimited paths.
//
// Values are JSON documents. Every document carries a version that is bumped
// on each write, so callers can detect concurrent writers with CompareAndSet.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrInvalidPath     = errors.New("invalid path")
)

// Document is a stored value together with its version.
type Document struct {
	Path    string
	Value   []byte
	Version int64
}

// Key returns the last segment of the document path.
func (d Document) Key() string {
	return Base(d.Path)
}

// Store is the document store contract used by the ledger.
type Store interface {
	// Get returns the document at path or ErrNotFound.
	Get(ctx context.Context, path string) (*Document, error)
	// Set overwrites the document at path.
	Set(ctx context.Context, path string, value []byte) error
	// CompareAndSet writes value only if the stored version equals version.
	// Version 0 means the document must not exist yet.
	CompareAndSet(ctx context.Context, path string, version int64, value []byte) error
	// Children returns the direct children of parent in key order.
	Children(ctx context.Context, parent string) ([]Document, error)
	Ping(ctx context.Context) error
	Close() error
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Base returns the last path segment.
func Base(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Parent returns everything before the last path segment.
func Parent(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}

func validPath(path string) error {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") || strings.Contains(path, "//") {
		return ErrInvalidPath
	}
	return nil
}

// LessKey orders keys the way the realtime store does: integer-like keys
// first in numeric order, then everything else lexically.
func LessKey(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return ai < bi
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}

func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		return LessKey(docs[i].Key(), docs[j].Key())
	})
}

// GetJSON reads the document at path into dest and returns its version.
func GetJSON(ctx context.Context, s Store, path string, dest any) (int64, error) {
	doc, err := s.Get(ctx, path)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal(doc.Value, dest); err != nil {
		return 0, err
	}
	return doc.Version, nil
}

// SetJSON overwrites the document at path with value encoded as JSON.
func SetJSON(ctx context.Context, s Store, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(ctx, path, data)
}

// CompareAndSetJSON is CompareAndSet with value encoded as JSON.
func CompareAndSetJSON(ctx context.Context, s Store, path string, version int64, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.CompareAndSet(ctx, path, version, data)
}
