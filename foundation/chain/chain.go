// Package chain provides read access to an Ethereum JSON-RPC node.
package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Client reads chain data from a node.
type Client struct {
	eth *ethclient.Client
}

// Dial connects to the node at the specified url.
func Dial(ctx context.Context, rawURL string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", rawURL, err)
	}

	return &Client{eth: eth}, nil
}

// BlockNumber returns the number of the most recent block.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}

	return n, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.eth.Close()
}
