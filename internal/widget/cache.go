package widget

import (
	"context"
	"strconv"
	"strings"
)

// Key identifies one cached widget response. Generation changes whenever the project's
// testimonials or domain settings change, which retires every older key at once.
type Key struct {
	ProjectID  string
	Generation int64
	Domain     string
	Tags       []string
}

func (key Key) String() string {
	var builder strings.Builder
	builder.WriteString(key.ProjectID)
	builder.WriteString(":g")
	builder.WriteString(strconv.FormatInt(key.Generation, 10))
	builder.WriteString(":d=")
	builder.WriteString(key.Domain)
	builder.WriteString(":t=")
	builder.WriteString(strings.Join(key.Tags, ","))
	return builder.String()
}

// Cache stores authorized widget responses for a short time.
type Cache interface {
	Generation(ctx context.Context, projectID string) (int64, error)
	Get(ctx context.Context, key Key) (Response, bool, error)
	Set(ctx context.Context, key Key, response Response) error
	InvalidateProject(ctx context.Context, projectID string) error
}

type noopCache struct{}

func (noopCache) Generation(context.Context, string) (int64, error) {
	return 0, nil
}

func (noopCache) Get(context.Context, Key) (Response, bool, error) {
	return Response{}, false, nil
}

func (noopCache) Set(context.Context, Key, Response) error {
	return nil
}

func (noopCache) InvalidateProject(context.Context, string) error {
	return nil
}

// NoopCache never stores anything.
func NoopCache() Cache {
	return noopCache{}
}
