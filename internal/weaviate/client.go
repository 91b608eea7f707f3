// Package weaviate exposes the objects of a Weaviate instance as records.
// It wraps the official client with a retrying HTTP transport and maps
// object properties onto field locations.
package weaviate

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	weaviatemodels "github.com/weaviate/weaviate/entities/models"
	"gitlab.com/tozd/go/errors"
)

// ErrObjectNotFound is returned when an object id is unknown to its class
var ErrObjectNotFound = errors.Base("object not found")

// Object is a Weaviate object reduced to what search and replace needs
type Object struct {
	ID         string
	Class      string
	Properties map[string]any
}

// ClientOptions configures the HTTP side of a Client
type ClientOptions struct {
	APIKey   string
	RetryMax int
	Timeout  time.Duration
}

// Client wraps the Weaviate client
type Client struct {
	client *weaviate.Client
	url    string
}

// NewClient creates a new Weaviate client. url may carry an http:// or
// https:// scheme; http is assumed otherwise.
func NewClient(ctx context.Context, url string, opts ClientOptions) (*Client, error) {
	cfg := weaviate.Config{
		Host:   url,
		Scheme: "http",
	}

	if host, ok := strings.CutPrefix(url, "http://"); ok {
		cfg.Host = host
	} else if host, ok := strings.CutPrefix(url, "https://"); ok {
		cfg.Host = host
		cfg.Scheme = "https"
	}

	rc := retryablehttp.NewClient()
	rc.Logger = retryLogger{zerolog.Ctx(ctx)}
	if opts.RetryMax > 0 {
		rc.RetryMax = opts.RetryMax
	}
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	cfg.ConnectionClient = rc.StandardClient()

	if opts.APIKey != "" {
		cfg.Headers = map[string]string{"Authorization": "Bearer " + opts.APIKey}
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, errors.Errorf("failed to create Weaviate client: %w", err)
	}

	return &Client{
		client: client,
		url:    url,
	}, nil
}

// retryLogger routes retryablehttp messages to debug logging
type retryLogger struct {
	log *zerolog.Logger
}

func (l retryLogger) Error(msg string, kv ...any) { l.log.Debug().Fields(kv).Msg(msg) }
func (l retryLogger) Info(msg string, kv ...any)  { l.log.Debug().Fields(kv).Msg(msg) }
func (l retryLogger) Debug(msg string, kv ...any) { l.log.Trace().Fields(kv).Msg(msg) }
func (l retryLogger) Warn(msg string, kv ...any)  { l.log.Debug().Fields(kv).Msg(msg) }

// Ping checks if Weaviate is reachable
func (c *Client) Ping(ctx context.Context) error {
	live, err := c.client.Misc().LiveChecker().Do(ctx)
	if err != nil {
		return errors.Errorf("failed to connect to Weaviate at %s: %w", c.url, err)
	}
	if !live {
		return errors.Errorf("weaviate at %s is not live", c.url)
	}
	return nil
}

// GetClasses returns the classes that have at least one text property
func (c *Client) GetClasses(ctx context.Context) ([]string, error) {
	schema, err := c.client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, errors.Errorf("failed to get schema: %w", err)
	}
	return textClasses(schema), nil
}

func textClasses(schema *weaviatemodels.Schema) []string {
	if schema == nil {
		return nil
	}
	var classes []string
	for _, class := range schema.Classes {
		if class != nil && hasTextProperty(class) {
			classes = append(classes, class.Class)
		}
	}
	return classes
}

func hasTextProperty(class *weaviatemodels.Class) bool {
	for _, prop := range class.Properties {
		for _, dt := range prop.DataType {
			if dt == "text" || dt == "text[]" || dt == "string" || dt == "object" || dt == "object[]" {
				return true
			}
		}
	}
	return false
}

// GetClassCount returns the number of objects in a class using aggregate query
func (c *Client) GetClassCount(ctx context.Context, className string) (int, error) {
	metaField := graphql.Field{
		Name: "meta",
		Fields: []graphql.Field{
			{Name: "count"},
		},
	}

	result, err := c.client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(metaField).
		Do(ctx)
	if err != nil {
		return 0, errors.Errorf("failed to get count for %s: %w", className, err)
	}
	if len(result.Errors) > 0 {
		return 0, errors.Errorf("failed to get count for %s: %s", className, result.Errors[0].Message)
	}

	data, ok := result.Data["Aggregate"].(map[string]any)
	if !ok {
		return 0, errors.New("unexpected aggregate response format")
	}

	classData, ok := data[className].([]any)
	if !ok || len(classData) == 0 {
		return 0, nil
	}
	first, ok := classData[0].(map[string]any)
	if !ok {
		return 0, nil
	}
	meta, ok := first["meta"].(map[string]any)
	if !ok {
		return 0, nil
	}
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, nil
	}
	return int(count), nil
}

// ListObjectIDs returns one page of object ids using offset/limit pagination
func (c *Client) ListObjectIDs(ctx context.Context, className string, limit, offset int) ([]string, error) {
	objs, err := c.client.Data().ObjectsGetter().
		WithClassName(className).
		WithLimit(limit).
		WithOffset(offset).
		Do(ctx)
	if err != nil {
		return nil, errors.Errorf("failed to fetch objects from %s: %w", className, err)
	}

	ids := make([]string, 0, len(objs))
	for _, obj := range objs {
		ids = append(ids, obj.ID.String())
	}
	return ids, nil
}

// GetObject fetches a single object by class and ID
func (c *Client) GetObject(ctx context.Context, className, objectID string) (*Object, error) {
	objs, err := c.client.Data().ObjectsGetter().
		WithClassName(className).
		WithID(objectID).
		Do(ctx)
	if isNotFound(err) {
		return nil, errors.WithDetails(ErrObjectNotFound, "class", className, "id", objectID)
	}
	if err != nil {
		return nil, errors.Errorf("failed to fetch %s/%s: %w", className, objectID, err)
	}
	if len(objs) == 0 {
		return nil, errors.WithDetails(ErrObjectNotFound, "class", className, "id", objectID)
	}

	props, err := toPropertyMap(objs[0].Properties)
	if err != nil {
		return nil, err
	}
	return &Object{
		ID:         objs[0].ID.String(),
		Class:      objs[0].Class,
		Properties: props,
	}, nil
}

// MergeProperties patches the given properties, leaving all others untouched
func (c *Client) MergeProperties(ctx context.Context, className, objectID string, props map[string]any) error {
	err := c.client.Data().Updater().
		WithClassName(className).
		WithID(objectID).
		WithProperties(props).
		WithMerge().
		Do(ctx)
	if isNotFound(err) {
		return errors.WithDetails(ErrObjectNotFound, "class", className, "id", objectID)
	}
	if err != nil {
		return errors.Errorf("failed to update %s/%s: %w", className, objectID, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var werr *fault.WeaviateClientError
	return errors.As(err, &werr) && werr.StatusCode == http.StatusNotFound
}

// toPropertyMap converts the client's untyped property schema into a map
func toPropertyMap(props any) (map[string]any, error) {
	switch p := props.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return p, nil
	}

	data, err := json.Marshal(props)
	if err != nil {
		return nil, errors.Errorf("failed to read properties: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Errorf("failed to read properties: %w", err)
	}
	return out, nil
}
