package server

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fuellabs/go-faucet/chain"
	"github.com/fuellabs/go-faucet/faucet/dispenser"
	"github.com/fuellabs/go-faucet/faucet/session"
	"github.com/fuellabs/go-faucet/shared/clock"
	"github.com/fuellabs/go-faucet/testing/assert"
	"github.com/fuellabs/go-faucet/testing/require"
	"github.com/fuellabs/go-faucet/wallet"
	"github.com/pkg/errors"
)

// fakeNode answers the dispenser's node calls from memory.
type fakeNode struct {
	mu        sync.Mutex
	healthy   bool
	coins     []chain.CoinOutput
	sent      []*chain.Transfer
	commitErr error
}

func (f *fakeNode) Healthy(_ context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy
}

func (f *fakeNode) ChainInfo(_ context.Context) (*chain.ChainInfo, error) {
	return nil, errors.New("not scripted")
}

func (f *fakeNode) SpendableCoins(_ context.Context, _ chain.Address, _ chain.AssetId, _ uint64) ([]chain.CoinOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coins, nil
}

func (f *fakeNode) Send(_ context.Context, tx *chain.Transfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeNode) AwaitCommit(_ context.Context, _ chain.Bytes32) (chain.TxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return chain.StatusFailure, f.commitErr
	}
	return chain.StatusSuccess, nil
}

func (f *fakeNode) setCommitErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitErr = err
}

func (f *fakeNode) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeAuth resolves tokens from a fixed map.
type fakeAuth struct {
	users map[string]string
}

func (f *fakeAuth) GetUserSession(_ context.Context, token string) (string, error) {
	id, ok := f.users[token]
	if !ok {
		return "", errors.New("unknown session")
	}
	return id, nil
}

type testEnv struct {
	srv   *httptest.Server
	node  *fakeNode
	clock *clock.Fake
}

func newTestEnv(t *testing.T, difficulty uint8) *testEnv {
	t.Helper()
	w, err := wallet.FromHex(wallet.DevSecretKey)
	require.NoError(t, err)

	node := &fakeNode{healthy: true}
	node.coins = []chain.CoinOutput{{
		UtxoID: chain.UtxoId{TxID: chain.Bytes32{1}},
		Owner:  w.Address(),
		Amount: 1 << 50,
	}}
	fc := clock.NewFake(1_700_000_000)
	info := &chain.ChainInfo{MaxDepth: 4, MinGasPrice: 1, GasPerByte: 1}
	d := dispenser.NewService(dispenser.Config{
		DispenseAmount: 1234,
		Window:         86400,
		Timeout:        5 * time.Second,
		Retries:        2,
	}, w, node, info, dispenser.NewState(0, info.MaxDepth), dispenser.NewTracker(fc))

	svc := New(context.Background(), &Config{
		PublicNodeURL: "http://node.example:4000",
		ClerkPubKey:   "pk_test_xyz",
		SessionBurst:  1000,
	}, d,
		dispenser.NewPowVerifier(difficulty),
		session.NewStore(time.Hour),
		session.NewAuthStore(time.Hour),
		&fakeAuth{users: map[string]string{"tok_good": "user_42"}},
		node,
	)
	srv := httptest.NewServer(svc.buildHandler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, node: node, clock: fc}
}

func (e *testEnv) post(t *testing.T, path string, body interface{}, cookies ...*http.Cookie) (*http.Response, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer func() {
		require.NoError(t, resp.Body.Close())
	}()
	out := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createSession(t *testing.T, e *testEnv, address string) string {
	t.Helper()
	resp, body := e.post(t, "/session", map[string]string{"address": address})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	salt, ok := body["salt"].(string)
	require.Equal(t, true, ok)
	return salt
}

func TestDispense_PowFlow(t *testing.T) {
	e := newTestEnv(t, 0)
	addr := "0x" + bytes32Hex(0x11)

	salt := createSession(t, e, addr)
	resp, body := e.post(t, "/dispense", map[string]string{"salt": salt, "nonce": "0"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Success", body["status"])
	assert.Equal(t, float64(1234), body["tokens"])

	require.Equal(t, 1, e.node.sentCount())
	tx := e.node.sent[0]
	parsed, err := chain.ParseAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, parsed, tx.Outputs[0].To)
	assert.Equal(t, uint64(1234), tx.Outputs[0].Amount)
}

func TestDispense_ThrottleAcrossWindow(t *testing.T) {
	e := newTestEnv(t, 0)
	addr := "0x" + bytes32Hex(0x11)

	salt := createSession(t, e, addr)
	resp, _ := e.post(t, "/dispense", map[string]string{"salt": salt, "nonce": "0"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	salt = createSession(t, e, addr)
	resp, body := e.post(t, "/dispense", map[string]string{"salt": salt, "nonce": "0"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Account has already received assets today", body["error"])

	e.clock.Advance(86401)
	salt = createSession(t, e, addr)
	resp, _ = e.post(t, "/dispense", map[string]string{"salt": salt, "nonce": "0"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestDispense_PowReject(t *testing.T) {
	e := newTestEnv(t, 255)
	salt := createSession(t, e, "0x"+bytes32Hex(0x11))

	resp, body := e.post(t, "/dispense", map[string]string{"salt": salt, "nonce": "anything"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Invalid proof of work", body["error"])
}

func TestDispense_UnknownSalt(t *testing.T) {
	e := newTestEnv(t, 0)
	resp, body := e.post(t, "/dispense", map[string]string{"salt": bytes32Hex(0xab), "nonce": "0"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Salt does not exist", body["error"])
}

func TestDispense_MalformedSalt(t *testing.T) {
	e := newTestEnv(t, 0)
	resp, body := e.post(t, "/dispense", map[string]string{"salt": "zz", "nonce": "0"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid salt", body["error"])
}

func TestDispense_FailedDispenseKeepsSalt(t *testing.T) {
	e := newTestEnv(t, 0)
	addr := "0x" + bytes32Hex(0x11)
	salt := createSession(t, e, addr)

	e.node.setCommitErr(errors.New("transaction failed: out of gas"))
	resp, _ := e.post(t, "/dispense", map[string]string{"salt": salt, "nonce": "0"})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	// The solved challenge survives the failure; the client retries with
	// the same salt and nonce instead of re-solving.
	e.node.setCommitErr(nil)
	resp, body := e.post(t, "/dispense", map[string]string{"salt": salt, "nonce": "0"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Success", body["status"])
}

func TestDispense_SameSaltResolvesToOneSuccess(t *testing.T) {
	e := newTestEnv(t, 0)
	salt := createSession(t, e, "0x"+bytes32Hex(0x55))

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, _ := e.post(t, "/dispense", map[string]string{"salt": salt, "nonce": "0"})
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	sort.Ints(codes)
	assert.DeepEqual(t, []int{http.StatusCreated, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, e.node.sentCount())
}

// solveNonce brute-forces a proof of work solution for the salt string.
func solveNonce(t *testing.T, salt string, difficulty uint8) string {
	t.Helper()
	v := dispenser.NewPowVerifier(difficulty)
	for i := 0; i < 1<<22; i++ {
		nonce := strconv.Itoa(i)
		if v.Verify(salt, nonce) {
			return nonce
		}
	}
	t.Fatal("no nonce found")
	return ""
}

func TestDispense_SaltHashedAsSent(t *testing.T) {
	e := newTestEnv(t, 8)
	salt := createSession(t, e, "0x"+bytes32Hex(0x11))

	// A client may echo the salt in uppercase hex; the server must hash
	// the exact string the client hashed.
	upper := strings.ToUpper(salt)
	nonce := solveNonce(t, upper, 8)
	resp, body := e.post(t, "/dispense", map[string]string{"salt": upper, "nonce": nonce})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Success", body["status"])
}

func TestDispense_AuthFlow(t *testing.T) {
	e := newTestEnv(t, 0)

	// No session cookie.
	resp, body := e.post(t, "/dispense", map[string]string{"address": "0x" + bytes32Hex(0x22)})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["error"])

	// A bad provider token does not create a session.
	resp, _ = e.post(t, "/api/session/validate", map[string]string{"value": "tok_bad"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = e.post(t, "/api/session/validate", map[string]string{"value": "tok_good"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user_42", body["user"])
	cookies := resp.Cookies()
	require.Equal(t, 1, len(cookies))

	resp, body = e.post(t, "/dispense", map[string]string{"address": "0x" + bytes32Hex(0x22)}, cookies[0])
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Success", body["status"])

	// The same user is throttled even for a different recipient.
	resp, _ = e.post(t, "/dispense", map[string]string{"address": "0x" + bytes32Hex(0x33)}, cookies[0])
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Removing the session revokes access.
	resp, _ = e.post(t, "/api/session/remove", map[string]string{}, cookies[0])
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = e.post(t, "/dispense", map[string]string{"address": "0x" + bytes32Hex(0x44)}, cookies[0])
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDispense_ConcurrentDistinctRecipients(t *testing.T) {
	e := newTestEnv(t, 0)

	const n = 30
	salts := make([]string, n)
	for i := 0; i < n; i++ {
		salts[i] = createSession(t, e, "0x"+bytes32Hex(byte(i+1)))
	}

	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, _ := e.post(t, "/dispense", map[string]string{"salt": salts[i], "nonce": "0"})
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		require.Equal(t, http.StatusCreated, code, "request %d", i)
	}
	assert.Equal(t, n, e.node.sentCount())
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, 0)

	resp, body := e.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["up"])
	assert.Equal(t, true, body["fuel-core"])

	e.node.mu.Lock()
	e.node.healthy = false
	e.node.mu.Unlock()
	resp, body = e.get(t, "/health")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["fuel-core"])
}

func TestDispenseInfo(t *testing.T) {
	e := newTestEnv(t, 0)
	resp, body := e.get(t, "/dispense")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1234), body["amount"])
	assert.Equal(t, chain.BaseAssetId.Hex(), body["asset_id"])
}

func TestCreateSession_InvalidAddress(t *testing.T) {
	e := newTestEnv(t, 0)
	resp, body := e.post(t, "/session", map[string]string{"address": "not-an-address"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid address", body["error"])
}

func TestGetSession(t *testing.T) {
	e := newTestEnv(t, 0)
	addr := "0x" + bytes32Hex(0x11)
	salt := createSession(t, e, addr)

	resp, body := e.get(t, "/session?salt="+salt)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	parsed, err := chain.ParseAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, parsed.Hex(), body["address"])

	resp, body = e.get(t, "/session?salt="+bytes32Hex(0xcd))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Salt does not exist", body["error"])
}

func TestIndexPage(t *testing.T) {
	e := newTestEnv(t, 0)
	resp, err := http.Get(e.srv.URL + "/")
	require.NoError(t, err)
	defer func() {
		require.NoError(t, resp.Body.Close())
	}()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.NotEqual(t, "", resp.Header.Get("Cache-Control"))
}

// bytes32Hex returns a 32 byte value as 64 hex chars with the first byte
// set to b.
func bytes32Hex(b byte) string {
	var out [32]byte
	out[0] = b
	return hex.EncodeToString(out[:])
}
