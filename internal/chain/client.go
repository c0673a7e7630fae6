package chain

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"
)

// Object is the decoded content of an on-chain object read.
type Object struct {
	ID     string
	Type   string
	Fields map[string]any
}

// Reader reads raw object state, used only while bootstrapping pool
// metadata.
type Reader interface {
	GetObject(ctx context.Context, id string) (*Object, error)
}

// Client wraps a generic JSON-RPC connection to the chain node.
type Client struct {
	rpcClient *rpc.Client

	mu    sync.RWMutex
	cache map[string]*Object
}

// NewClient dials the RPC endpoint.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		rpcClient: rpcClient,
		cache:     make(map[string]*Object),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

type objectResponse struct {
	Data struct {
		ObjectID string `json:"objectId"`
		Type     string `json:"type"`
		Content  struct {
			DataType string         `json:"dataType"`
			Type     string         `json:"type"`
			Fields   map[string]any `json:"fields"`
		} `json:"content"`
	} `json:"data"`
	Error map[string]any `json:"error"`
}

// GetObject reads an object's type and fields. Results are cached for the
// process lifetime; pool metadata we read this way is immutable.
func (c *Client) GetObject(ctx context.Context, id string) (*Object, error) {
	c.mu.RLock()
	cached, ok := c.cache[id]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	var resp objectResponse
	options := map[string]bool{"showType": true, "showContent": true}
	if err := c.rpcClient.CallContext(ctx, &resp, "sui_getObject", id, options); err != nil {
		return nil, fmt.Errorf("get object %s: %w", id, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("get object %s: %v", id, resp.Error)
	}
	if resp.Data.Content.DataType != "moveObject" {
		return nil, fmt.Errorf("get object %s: unexpected data type %q", id, resp.Data.Content.DataType)
	}

	obj := &Object{
		ID:     resp.Data.ObjectID,
		Type:   resp.Data.Type,
		Fields: resp.Data.Content.Fields,
	}
	if obj.Type == "" {
		obj.Type = resp.Data.Content.Type
	}

	c.mu.Lock()
	c.cache[id] = obj
	c.mu.Unlock()

	return obj, nil
}

// StringField returns a field as a string; numbers are formatted plainly.
func (o *Object) StringField(name string) string {
	v, ok := o.Fields[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers arrive as float64; object fields we read are
		// integral (fee rates, tick spacings, reserves).
		return fmt.Sprintf("%.0f", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

var (
	typeArgA = regexp.MustCompile(`<([^,>]+)\s*,`)
	typeArgB = regexp.MustCompile(`,\s*([^,>]+)>`)
)

// CoinTypesFromPoolType extracts the two coin type arguments from a pool's
// generic Move type, e.g. "...::pool::Pool<0x2::sui::SUI, 0x..::usdc::USDC>".
func CoinTypesFromPoolType(poolType string) (string, string) {
	var coinA, coinB string
	if m := typeArgA.FindStringSubmatch(poolType); m != nil {
		coinA = m[1]
	}
	if m := typeArgB.FindStringSubmatch(poolType); m != nil {
		coinB = m[1]
	}
	return coinA, coinB
}
