package storage

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	ObjectName  string
	Size        int64
	ContentType string
}

// Store abstracts the object storage backing StorageRef resources. A share
// link's disk name maps to a bucket.
type Store interface {
	GetObject(ctx context.Context, bucket, object string) (io.ReadCloser, ObjectInfo, error)
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, params map[string]string) (string, error)
}

// Default is the main object store instance.
var Default Store
