package backend

import (
	"context"
	"encoding/json"
)

const rpcTarget = "/functions/v1/rpc"

type rpcEnvelope struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// RPC invokes a named remote procedure through the backend's single RPC
// endpoint. Parameters are forwarded as given; sanitizing them against the
// operation's allow-list is each tool handler's job before this call.
func (c *Client) RPC(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	return c.Call(ctx, rpcTarget, rpcEnvelope{Method: method, Params: params}, CallOptions{})
}
