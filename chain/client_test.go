package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fuellabs/go-faucet/testing/assert"
	"github.com/fuellabs/go-faucet/testing/require"
)

func TestClient_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]bool{"up": true})
	}))
	defer srv.Close()

	c := New(srv.URL)
	assert.Equal(t, true, c.Healthy(context.Background()))
}

func TestClient_Healthy_NodeDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close() // refuse connections entirely

	c := New(srv.URL)
	assert.Equal(t, false, c.Healthy(context.Background()))
}

func TestClient_SpendableCoins(t *testing.T) {
	var owner Address
	owner[0] = 0xaa
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/coins", r.URL.Path)
		require.Equal(t, owner.Hex(), r.URL.Query().Get("owner"))
		require.Equal(t, "5000", r.URL.Query().Get("at_least"))
		_ = json.NewEncoder(w).Encode([]CoinOutput{
			{UtxoID: UtxoId{TxID: Bytes32{1}}, Owner: owner, Amount: 9000},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	coins, err := c.SpendableCoins(context.Background(), owner, BaseAssetId, 5000)
	require.NoError(t, err)
	require.Equal(t, 1, len(coins))
	assert.Equal(t, uint64(9000), coins[0].Amount)
}

func TestClient_SpendableCoins_ResourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not enough coins"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.SpendableCoins(context.Background(), Address{}, BaseAssetId, 1)
	require.NotNil(t, err)
	_, ok := err.(*ResourceError)
	assert.Equal(t, true, ok, "expected a ResourceError, got %T", err)
}

func TestClient_Send_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/tx", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "mempool full"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Send(context.Background(), sampleTransfer())
	require.NotNil(t, err)
	submitErr, ok := err.(*SubmitError)
	require.Equal(t, true, ok, "expected a SubmitError, got %T", err)
	assert.Equal(t, "mempool full", submitErr.Reason)
}

func TestClient_AwaitCommit(t *testing.T) {
	tx := sampleTransfer()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/tx/"+tx.ID().Hex()+"/status", r.URL.Path)
		calls++
		status := StatusPending
		if calls >= 2 {
			status = StatusSuccess
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": status})
	}))
	defer srv.Close()

	c := New(srv.URL)
	status, err := c.AwaitCommit(context.Background(), tx.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.Equal(t, true, calls >= 2)
}

func TestClient_AwaitCommit_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": StatusFailure, "reason": "out of gas"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.AwaitCommit(context.Background(), Bytes32{})
	assert.ErrorContains(t, "out of gas", err)
}

func TestClient_AwaitCommit_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": StatusPending})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New(srv.URL)
	_, err := c.AwaitCommit(ctx, Bytes32{})
	assert.ErrorContains(t, "context deadline exceeded", err)
}
