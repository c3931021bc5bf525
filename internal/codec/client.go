package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region client-struct
// Client wraps a gRPC connection to a Generator service.
type Client struct {
	conn *grpc.ClientConn
}

// #endregion client-struct

// #region constructor
// NewClient connects to the Generator service at addr.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// #endregion close

// #region execute
// Execute runs a program on a scene remotely.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResponse, error) {
	var resp ExecuteResponse
	if err := c.invoke(ctx, executeMethod, req, &resp); err != nil {
		return ExecuteResponse{}, fmt.Errorf("execute rpc: %w", err)
	}
	return resp, nil
}

// #endregion execute

// #region instantiate
// Instantiate grounds a template remotely.
func (c *Client) Instantiate(ctx context.Context, req InstantiateRequest) (InstantiateResponse, error) {
	var resp InstantiateResponse
	if err := c.invoke(ctx, instantiateMethod, req, &resp); err != nil {
		return InstantiateResponse{}, fmt.Errorf("instantiate rpc: %w", err)
	}
	return resp, nil
}

// #endregion instantiate

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return err
	}
	return fromStruct(out, resp)
}
