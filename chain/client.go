package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "chain")

// commitPollInterval is how often AwaitCommit re-reads the transaction
// status from the node.
const commitPollInterval = 500 * time.Millisecond

// TxStatus is the lifecycle state the node reports for a transaction.
type TxStatus string

// Transaction statuses reported by the node.
const (
	StatusPending TxStatus = "Pending"
	StatusSuccess TxStatus = "Success"
	StatusFailure TxStatus = "Failure"
)

// ChainInfo carries the consensus parameters the faucet needs at startup.
type ChainInfo struct {
	ChainID     uint64  `json:"chain_id"`
	MaxDepth    uint64  `json:"max_depth"`
	BaseAssetID AssetId `json:"base_asset_id"`
	MinGasPrice uint64  `json:"min_gas_price"`
	GasPerByte  uint64  `json:"gas_per_byte"`
}

// SubmitError indicates the node rejected a submitted transaction, for
// example on mempool overflow or an invalid signature.
type SubmitError struct {
	Reason string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("transaction rejected: %s", e.Reason)
}

// ResourceError indicates the node could not provide the requested coins.
type ResourceError struct {
	Reason string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("could not fetch coins: %s", e.Reason)
}

// NodeClient is the faucet's view of a running node.
type NodeClient interface {
	// Healthy never returns an error; any failure reads as unhealthy.
	Healthy(ctx context.Context) bool
	// ChainInfo fetches the consensus parameters.
	ChainInfo(ctx context.Context) (*ChainInfo, error)
	// SpendableCoins returns coins owned by the address summing to at
	// least the requested amount, or a ResourceError.
	SpendableCoins(ctx context.Context, owner Address, asset AssetId, atLeast uint64) ([]CoinOutput, error)
	// Send submits a transaction without waiting for inclusion. The node
	// may reject it with a SubmitError.
	Send(ctx context.Context, tx *Transfer) error
	// AwaitCommit blocks until the transaction reaches a terminal status.
	// Callers bound it with a context deadline.
	AwaitCommit(ctx context.Context, txID Bytes32) (TxStatus, error)
}

// Client talks to the node's HTTP API. It is safe for concurrent use; all
// requests share one pooled http.Client.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ NodeClient = (*Client)(nil)

// New returns a client for the node at the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

// Healthy reports whether the node answers its health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	var out struct {
		Up bool `json:"up"`
	}
	if err := c.get(ctx, "/v1/health", &out); err != nil {
		log.WithError(err).Debug("Node healthcheck failed")
		return false
	}
	return out.Up
}

// ChainInfo fetches the consensus parameters.
func (c *Client) ChainInfo(ctx context.Context) (*ChainInfo, error) {
	info := &ChainInfo{}
	if err := c.get(ctx, "/v1/chain", info); err != nil {
		return nil, errors.Wrap(err, "fetch chain info")
	}
	return info, nil
}

// SpendableCoins returns coins owned by the address summing to at least the
// requested amount.
func (c *Client) SpendableCoins(ctx context.Context, owner Address, asset AssetId, atLeast uint64) ([]CoinOutput, error) {
	q := url.Values{}
	q.Set("owner", owner.Hex())
	q.Set("asset", asset.Hex())
	q.Set("at_least", strconv.FormatUint(atLeast, 10))
	var coins []CoinOutput
	if err := c.get(ctx, "/v1/coins?"+q.Encode(), &coins); err != nil {
		return nil, &ResourceError{Reason: err.Error()}
	}
	return coins, nil
}

// Send submits a transaction without waiting for inclusion.
func (c *Client) Send(ctx context.Context, tx *Transfer) error {
	body, err := json.Marshal(tx)
	if err != nil {
		return errors.Wrap(err, "encode transaction")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tx", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Debug("Could not close response body")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return &SubmitError{Reason: readError(resp.Body, resp.StatusCode)}
	}
	return nil
}

// AwaitCommit polls the transaction status until it is terminal or the
// context expires.
func (c *Client) AwaitCommit(ctx context.Context, txID Bytes32) (TxStatus, error) {
	ticker := time.NewTicker(commitPollInterval)
	defer ticker.Stop()
	for {
		var out struct {
			Status TxStatus `json:"status"`
			Reason string   `json:"reason"`
		}
		if err := c.get(ctx, "/v1/tx/"+txID.Hex()+"/status", &out); err != nil {
			return "", errors.Wrap(err, "fetch transaction status")
		}
		switch out.Status {
		case StatusSuccess:
			return StatusSuccess, nil
		case StatusFailure:
			return StatusFailure, errors.Errorf("transaction failed: %s", out.Reason)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Debug("Could not close response body")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return errors.New(readError(resp.Body, resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readError(r io.Reader, code int) string {
	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&out); err == nil && out.Error != "" {
		return out.Error
	}
	return fmt.Sprintf("unexpected status %d", code)
}
