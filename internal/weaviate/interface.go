package weaviate

import (
	"context"
)

// ClientInterface defines the Weaviate operations the record source needs.
// This interface enables mocking in tests.
type ClientInterface interface {
	GetClasses(ctx context.Context) ([]string, error)
	GetClassCount(ctx context.Context, className string) (int, error)
	ListObjectIDs(ctx context.Context, className string, limit, offset int) ([]string, error)
	GetObject(ctx context.Context, className, objectID string) (*Object, error)
	MergeProperties(ctx context.Context, className, objectID string, props map[string]any) error
}

// Verify that *Client implements ClientInterface at compile time
var _ ClientInterface = (*Client)(nil)
