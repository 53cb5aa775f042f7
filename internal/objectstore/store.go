// Package objectstore defines the Store interface for S3-compatible storage.
//
// circular uses object storage as a dump destination: each reconstruction is
// uploaded as one object, and the dumps subcommand lists and fetches them.
//
//	store, err := s3.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	key := objectstore.DumpKey("dumps", time.Now(), dumpID)
//	err = store.PutWithOptions(ctx, key, bytes.NewReader(data), int64(len(data)),
//	    "text/plain", objectstore.PutOptions{IfNoneMatch: "*"})
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrPreconditionFailed is returned when a conditional write fails.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrAccessDenied is returned when the credentials lack permission for the operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("store is closed")
)

// ObjectError wraps an error with the object key for context.
type ObjectError struct {
	Op  string // Operation that failed (e.g., "Put", "Get", "List")
	Key string // Object key or list prefix
	Err error  // Underlying error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("objectstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// ObjectMeta contains metadata about an object.
type ObjectMeta struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified int64 // Unix milliseconds
	Metadata     map[string]string
}

// PutOptions configures a Put operation.
type PutOptions struct {
	// Metadata is optional user-defined key-value pairs stored with the object.
	Metadata map[string]string

	// IfNoneMatch set to "*" fails the Put with ErrPreconditionFailed when an
	// object already exists at the key.
	IfNoneMatch string
}

// Store is the interface for object storage operations.
//
// Implementations must be safe for concurrent use and should wrap errors
// in [ObjectError].
type Store interface {
	// Put stores an object. size must match the bytes reader yields.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// PutWithOptions stores an object with metadata and conditional-create support.
	PutWithOptions(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts PutOptions) error

	// Get retrieves an entire object. The caller closes the returned reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Head retrieves object metadata without the body.
	Head(ctx context.Context, key string) (ObjectMeta, error)

	// List returns objects under prefix in lexicographic key order.
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)

	// Close releases resources associated with the store.
	Close() error
}
