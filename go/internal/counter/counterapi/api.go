package counterapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mcdev12/slapboard/go/internal/tally"
)

// ServiceName is the fully-qualified name of the counter service
const ServiceName = "slapboard.counter.v1.CounterService"

const (
	// IncrementProcedure adds one to a team's count and returns the document
	IncrementProcedure = "/" + ServiceName + "/Increment"
	// GetCountsProcedure returns the current document
	GetCountsProcedure = "/" + ServiceName + "/GetCounts"
)

// UpdatedAtHeader carries the document version on GetCounts responses and relay messages
const UpdatedAtHeader = "Updated-At"

// FormatUpdatedAt renders a document version for UpdatedAtHeader
func FormatUpdatedAt(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseUpdatedAt reads an UpdatedAtHeader value. Missing or malformed values yield the zero time.
func ParseUpdatedAt(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// CountsToStruct renders counts as a protobuf Struct
func CountsToStruct(c tally.Counts) (*structpb.Struct, error) {
	fields := make(map[string]interface{}, len(c))
	for team, n := range c {
		fields[string(team)] = n
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build counts struct: %w", err)
	}
	return s, nil
}

// StructToDocument renders a Struct as the raw JSON document Store Sync decodes
func StructToDocument(s *structpb.Struct) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("empty counts struct")
	}
	return json.Marshal(s.AsMap())
}

// Client calls the counter service
type Client struct {
	increment *connect.Client[wrapperspb.StringValue, structpb.Struct]
	getCounts *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewClient creates a client for the service at baseURL
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		increment: connect.NewClient[wrapperspb.StringValue, structpb.Struct](
			httpClient, baseURL+IncrementProcedure, opts...,
		),
		getCounts: connect.NewClient[emptypb.Empty, structpb.Struct](
			httpClient, baseURL+GetCountsProcedure, opts...,
		),
	}
}

// Increment adds one to team and returns the resulting document
func (c *Client) Increment(ctx context.Context, team tally.TeamID) (*structpb.Struct, error) {
	res, err := c.increment.CallUnary(ctx, connect.NewRequest(wrapperspb.String(string(team))))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// GetCounts returns the current document and its version, zero when the server sent none
func (c *Client) GetCounts(ctx context.Context) (*structpb.Struct, time.Time, error) {
	res, err := c.getCounts.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, time.Time{}, err
	}
	return res.Msg, ParseUpdatedAt(res.Header().Get(UpdatedAtHeader)), nil
}
