package isamurai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/oapi-codegen/runtime"
)

const (
	pathCredits           = "/user-credits/"
	pathSwapProgress      = "/swap-progress/"
	pathMultiSwapProgress = "/multi-swap-progress/"
)

// StatusOption tunes a status query.
type StatusOption func(*statusQuery)

type statusQuery struct {
	multi bool
}

// WithMulti queries the multi face swap job family.
func WithMulti(multi bool) StatusOption {
	return func(q *statusQuery) { q.multi = multi }
}

// StatusFetcher is the single operation the watcher depends on.
type StatusFetcher interface {
	GetJobStatus(ctx context.Context, id JobID, opts ...StatusOption) (*JobStatus, error)
}

var _ StatusFetcher = (*Client)(nil)

// GetCredits returns the current plan and credit balance.
func (c *Client) GetCredits(ctx context.Context) (*Credits, error) {
	var credits Credits
	if _, err := c.do(ctx, request{method: http.MethodGet, path: pathCredits}, &credits); err != nil {
		return nil, err
	}
	return &credits, nil
}

// GetJobStatus fetches the current status of a job.
func (c *Client) GetJobStatus(ctx context.Context, id JobID, opts ...StatusOption) (*JobStatus, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, fmt.Errorf("%w: empty job id", ErrInvalidArgument)
	}

	var q statusQuery
	for _, opt := range opts {
		opt(&q)
	}

	path := pathSwapProgress
	if q.multi {
		path = pathMultiSwapProgress
	}

	query, err := idQuery(id)
	if err != nil {
		return nil, err
	}

	var status JobStatus
	if _, err := c.do(ctx, request{method: http.MethodGet, path: path, query: query}, &status); err != nil {
		return nil, err
	}
	if status.ID == "" {
		status.ID = id
	}
	return &status, nil
}

// idQuery serializes the id parameter in OpenAPI form style.
func idQuery(id JobID) (url.Values, error) {
	frag, err := runtime.StyleParamWithLocation("form", true, "id", runtime.ParamLocationQuery, string(id))
	if err != nil {
		return nil, fmt.Errorf("encode id: %w", err)
	}
	values, err := url.ParseQuery(frag)
	if err != nil {
		return nil, fmt.Errorf("encode id: %w", err)
	}
	return values, nil
}
