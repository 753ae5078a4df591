package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const resourcePrefix = "/rest/v1/"

// QueryOptions tunes a resource call. Method defaults to GET; Body is only
// sent on writes.
type QueryOptions struct {
	Method string
	Body   any
}

// Query issues a filtered read or write against a named resource. Filter
// values go through url.Values encoding, so a value containing filter-grammar
// characters (delimiters, a nested "field=op.value" sequence) is always
// percent-encoded into an opaque literal. This encoding is the sole injection
// defense for the resource surface.
//
// Write methods ask the backend for the mutated rows back; a 204 or
// empty-body response (the normal DELETE answer) normalizes to zero rows
// rather than a decode failure.
func (c *Client) Query(ctx context.Context, resource string, filters map[string]string, opts QueryOptions) ([]map[string]any, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	query := url.Values{}
	for field, expr := range filters {
		query.Set(field, expr)
	}

	callOpts := CallOptions{Method: method, Query: query}
	if method != http.MethodGet {
		callOpts.Headers = map[string]string{"Prefer": "return=representation"}
	}

	raw, err := c.Call(ctx, resourcePrefix+resource, opts.Body, callOpts)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return []map[string]any{}, nil
	}

	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}

	// Some resource reads return a single object instead of an array.
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, Wrap(fmt.Errorf("decode %s response: %w", resource, err))
	}
	return []map[string]any{row}, nil
}

// MutationResult is the tagged outcome of a resource write: either the
// mutated rows or a confirmation demand from the backend.
type MutationResult struct {
	Confirmation *Confirmation
	Rows         []map[string]any
}

// Mutate issues a write against a named resource and performs the structural
// confirmation check right at the deserialization boundary, so handlers only
// deal with the tagged result. A confirmation token from a prior demand is
// carried on the X-Confirmation-Token header; judging the token is entirely
// the backend's job.
func (c *Client) Mutate(ctx context.Context, resource, method string, filters map[string]string, body any, confirmationToken string) (MutationResult, error) {
	query := url.Values{}
	for field, expr := range filters {
		query.Set(field, expr)
	}

	headers := map[string]string{"Prefer": "return=representation"}
	if confirmationToken != "" {
		headers["X-Confirmation-Token"] = confirmationToken
	}

	raw, err := c.Call(ctx, resourcePrefix+resource, body, CallOptions{
		Method:  method,
		Query:   query,
		Headers: headers,
	})
	if err != nil {
		return MutationResult{}, err
	}

	out := ClassifyOutcome(raw)
	if !out.Confirmed() {
		return MutationResult{Confirmation: out.Confirmation}, nil
	}
	if len(out.Payload) == 0 {
		return MutationResult{Rows: []map[string]any{}}, nil
	}

	var rows []map[string]any
	if err := json.Unmarshal(out.Payload, &rows); err == nil {
		return MutationResult{Rows: rows}, nil
	}
	var row map[string]any
	if err := json.Unmarshal(out.Payload, &row); err != nil {
		return MutationResult{}, Wrap(fmt.Errorf("decode %s response: %w", resource, err))
	}
	return MutationResult{Rows: []map[string]any{row}}, nil
}
