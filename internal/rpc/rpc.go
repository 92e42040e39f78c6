// Package rpc mounts Connect unary procedures whose messages are plain Go
// structs. A JSON codec replaces Connect's protobuf-based defaults, so the
// services need no generated code while still speaking the Connect protocol
// (and being callable with curl).
package rpc

import (
	"context"
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"
)

// PackagePrefix prefixes every procedure path.
const PackagePrefix = "/splitledger.v1."

// Procedure returns the path for service/method, e.g.
// "/splitledger.v1.ExpenseService/CreateExpense".
func Procedure(service, method string) string {
	return PackagePrefix + service + "/" + method
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

// WithJSON registers the JSON codec on a handler or client.
func WithJSON() connect.Option {
	return connect.WithCodec(jsonCodec{})
}

// Route is one procedure ready to be mounted on a mux.
type Route struct {
	Path    string
	Handler http.Handler
}

// Unary builds a Route for a unary procedure.
func Unary[Req, Res any](
	procedure string,
	fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error),
	opts ...connect.HandlerOption,
) Route {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	return Route{Path: procedure, Handler: connect.NewUnaryHandler(procedure, fn, opts...)}
}

// Mount registers routes on mux.
func Mount(mux *http.ServeMux, routes []Route) {
	for _, r := range routes {
		mux.Handle(r.Path, r.Handler)
	}
}

// NewClient creates a JSON client for one procedure on baseURL.
func NewClient[Req, Res any](httpClient connect.HTTPClient, baseURL, procedure string, opts ...connect.ClientOption) *connect.Client[Req, Res] {
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return connect.NewClient[Req, Res](httpClient, baseURL+procedure, opts...)
}
