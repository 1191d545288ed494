package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	gql "github.com/hasura/go-graphql-client"
	"github.com/tidwall/gjson"

	"github.com/cchalm/guarded-chat/internal/transport"
)

const (
	userAgentHeader = "x-amz-user-agent"
	contentType     = "application/graphql"
)

// RequestError is returned when the store responds with a non-2xx status
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("GraphQL request failed (status %d): %s", e.StatusCode, e.Body)
}

// ResponseErrors is returned when the store responds successfully but reports GraphQL errors
type ResponseErrors struct {
	Errors json.RawMessage
}

func (e *ResponseErrors) Error() string {
	return fmt.Sprintf("GraphQL errors: %s", string(e.Errors))
}

// Response holds the data object of a successful GraphQL response
type Response struct {
	data []byte
}

// Field returns <name> from the data object
func (r *Response) Field(name string) gjson.Result {
	return gjson.GetBytes(r.data, name)
}

// Items returns the items of a list query result, <name>.items
func (r *Response) Items(name string) gjson.Result {
	return gjson.GetBytes(r.data, name+".items")
}

// NewResponse wraps the data object of a response
func NewResponse(data []byte) *Response {
	return &Response{data: data}
}

// Client executes GraphQL requests against a single endpoint on behalf of a single caller
type Client struct {
	endpoint   string
	httpClient *http.Client
	userAgent  UserAgent
}

// NewClient creates a client that forwards the caller's authorization value unchanged on every request. base may be nil.
func NewClient(endpoint string, authorization string, userAgent UserAgent, base http.RoundTripper) *Client {
	headers := http.Header{}
	headers.Set("Authorization", authorization)
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Transport: transport.WithHeaders(base, headers)},
		userAgent:  userAgent,
	}
}

type callOptions struct {
	metadata []Metadata
}

type CallOption func(*callOptions)

// WithUserAgentMetadata appends key/value to the user agent of a single call
func WithUserAgentMetadata(key string, value string) CallOption {
	return func(o *callOptions) {
		o.metadata = append(o.metadata, Metadata{Key: key, Value: value})
	}
}

// CallMetadata returns the user agent metadata requested by opts, in order
func CallMetadata(opts ...CallOption) []Metadata {
	var options callOptions
	for _, opt := range opts {
		opt(&options)
	}
	return options.metadata
}

// Execute sends req and returns the response. Non-2xx statuses and responses carrying GraphQL errors are failures.
func (c *Client) Execute(ctx context.Context, req Request, opts ...CallOption) (*Response, error) {
	userAgent := c.userAgent.String(CallMetadata(opts...)...)
	doer := &checkingDoer{client: c.httpClient}
	gqlClient := gql.NewClient(c.endpoint, doer).WithRequestModifier(func(r *http.Request) {
		r.Header.Set(userAgentHeader, userAgent)
	})

	data, err := gqlClient.ExecRaw(ctx, req.Query, req.Variables)
	if doer.failure != nil {
		return nil, doer.failure
	}
	if err != nil {
		var gqlErrs gql.Errors
		if errors.As(err, &gqlErrs) {
			raw, marshalErr := json.Marshal(gqlErrs)
			if marshalErr == nil {
				return nil, &ResponseErrors{Errors: raw}
			}
		}
		return nil, fmt.Errorf("failed to execute GraphQL request: %w", err)
	}

	return NewResponse(data), nil
}

// checkingDoer sends one store request and classifies the raw response before the GraphQL client decodes it. Any
// error field other than null fails the request, including an empty list.
type checkingDoer struct {
	client  *http.Client
	failure error
}

func (d *checkingDoer) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read GraphQL response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.failure = &RequestError{StatusCode: resp.StatusCode, Body: string(body)}
		return nil, d.failure
	}
	if !gjson.ValidBytes(body) {
		d.failure = fmt.Errorf("malformed GraphQL response: %s", string(body))
		return nil, d.failure
	}
	if errs := gjson.GetBytes(body, "errors"); errs.Exists() && errs.Type != gjson.Null {
		d.failure = &ResponseErrors{Errors: json.RawMessage(errs.Raw)}
		return nil, d.failure
	}

	resp.StatusCode = http.StatusOK
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
