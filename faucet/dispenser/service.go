// Package dispenser implements the faucet core: per-identity rate limiting,
// proof of work verification and the single-wallet transaction pipeline
// that issues concurrent transfers from one chain of UTXOs.
package dispenser

import (
	"context"
	"time"

	"github.com/fuellabs/go-faucet/chain"
	"github.com/fuellabs/go-faucet/wallet"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "dispenser")

// faucetOutputIndex is the position of the faucet-owned fee change coin in
// the transfer outputs built by the pipeline.
const faucetOutputIndex = 2

// errInsufficientBalance aborts the pipeline without retrying: no input the
// wallet owns can cover the fee plus the dispense amount.
var errInsufficientBalance = errors.New("faucet wallet balance is insufficient")

// Config are the dispense pipeline parameters.
type Config struct {
	// DispenseAmount of the base asset granted per request.
	DispenseAmount uint64
	// Window is the rolling per-identity rate limit window in seconds.
	Window uint64
	// Timeout bounds every outward RPC of the pipeline.
	Timeout time.Duration
	// Retries caps how often a failed submission is retried.
	Retries uint64
}

// Result of a successful dispense.
type Result struct {
	TxID   chain.Bytes32
	Tokens uint64
}

// Service orchestrates a dispense: admission through the tracker, the
// submission pipeline against the node, and finalization.
type Service struct {
	cfg     Config
	wallet  *wallet.Wallet
	client  chain.NodeClient
	info    *chain.ChainInfo
	state   *State
	tracker *Tracker
}

// NewService wires the dispense pipeline.
func NewService(cfg Config, w *wallet.Wallet, client chain.NodeClient, info *chain.ChainInfo, state *State, tracker *Tracker) *Service {
	return &Service{
		cfg:     cfg,
		wallet:  w,
		client:  client,
		info:    info,
		state:   state,
		tracker: tracker,
	}
}

// Tracker returns the shared dispense tracker.
func (s *Service) Tracker() *Tracker {
	return s.tracker
}

// Amount returns the configured dispense amount.
func (s *Service) Amount() uint64 {
	return s.cfg.DispenseAmount
}

// AssetID returns the dispensed asset.
func (s *Service) AssetID() chain.AssetId {
	return s.info.BaseAssetID
}

// MaxDepth returns the node's mempool dependency chain depth limit, which
// also caps concurrent dispenses past admission.
func (s *Service) MaxDepth() uint64 {
	return s.state.MaxDepth()
}

// Dispense transfers the configured amount to the recipient, rate limited
// by the given identity. Returns ErrRateLimited when the identity was
// already served within the window or has a dispense in flight.
func (s *Service) Dispense(ctx context.Context, recipient chain.Address, id Identity) (*Result, error) {
	if err := s.tracker.CheckAndReserve(id, s.cfg.Window); err != nil {
		dispensesThrottled.Inc()
		return nil, err
	}
	// Whatever happens below, a failed dispense must not leave the identity
	// stuck in progress; Track moves it to served on the success path.
	finalized := false
	defer func() {
		if !finalized {
			s.tracker.RemoveInProgress(id)
		}
	}()

	var txID chain.Bytes32
	submitted := false
	for attempt := uint64(0); attempt <= s.cfg.Retries; attempt++ {
		var err error
		txID, err = s.submitOnce(ctx, recipient)
		if err == nil {
			submitted = true
			break
		}
		if errors.Is(err, errInsufficientBalance) {
			dispenseFailures.Inc()
			return nil, err
		}
		log.WithError(err).WithField("attempt", attempt).Warn("Could not submit dispense transaction")
	}
	if !submitted {
		dispenseFailures.Inc()
		return nil, errors.Errorf("could not submit dispense transaction after %d retries", s.cfg.Retries)
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if _, err := s.client.AwaitCommit(commitCtx, txID); err != nil {
		dispenseFailures.Inc()
		return nil, errors.Wrap(err, "await transaction commit")
	}

	s.tracker.Track(id)
	finalized = true
	dispensesTotal.Inc()
	log.WithFields(logrus.Fields{
		"amount":    s.cfg.DispenseAmount,
		"recipient": recipient.Hex(),
		"txID":      txID.Hex(),
	}).Info("Dispensed tokens")
	return &Result{TxID: txID, Tokens: s.cfg.DispenseAmount}, nil
}

// submitOnce runs one pipeline iteration under the state lock: pick the
// input coin, build and sign the transfer at the next priority tier, price
// it, and submit it. On success the faucet's fee change becomes the next
// iteration's input; on any failure the remembered output is invalidated so
// the next attempt re-reads the chain.
func (s *Service) submitOnce(ctx context.Context, recipient chain.Address) (chain.Bytes32, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	coin, err := s.inputCoin(ctx)
	if err != nil {
		return chain.Bytes32{}, err
	}

	inputs := []chain.Input{{
		UtxoID:  coin.UtxoID,
		Owner:   coin.Owner,
		Amount:  coin.Amount,
		AssetID: s.info.BaseAssetID,
	}}
	outputs := []chain.Output{
		{Kind: chain.OutputCoin, To: recipient, Amount: s.cfg.DispenseAmount, AssetID: s.info.BaseAssetID},
		// Dust change back to the recipient; the node fills in the amount.
		{Kind: chain.OutputChange, To: recipient, AssetID: s.info.BaseAssetID},
		// Placeholder for the stable fee change, rewritten below.
		{Kind: chain.OutputCoin, To: s.wallet.Address(), AssetID: s.info.BaseAssetID},
	}

	tip := s.state.NextPriority()
	tx := s.wallet.BuildTransfer(inputs, outputs, tip, s.info.ChainID)
	s.wallet.Sign(tx)

	maxFee := s.wallet.EstimateMaxFee(tx, s.info)
	if coin.Amount < maxFee+s.cfg.DispenseAmount {
		return chain.Bytes32{}, errInsufficientBalance
	}
	stableChange := coin.Amount - maxFee - s.cfg.DispenseAmount
	tx.Outputs[faucetOutputIndex].Amount = stableChange
	s.wallet.Sign(tx)
	txID := tx.ID()

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := s.client.Send(sendCtx, tx); err != nil {
		// The submission may still have landed; force the next attempt to
		// re-read the chain instead of double spending a guessed output.
		s.state.lastOutput = nil
		return chain.Bytes32{}, errors.Wrap(err, "send transaction")
	}

	s.state.lastOutput = &chain.CoinOutput{
		UtxoID: chain.UtxoId{TxID: txID, OutputIndex: faucetOutputIndex},
		Owner:  s.wallet.Address(),
		Amount: stableChange,
	}
	return txID, nil
}

// inputCoin picks the sole input of the next transfer: the previous
// iteration's change when it can still cover a dispense, otherwise the
// largest spendable coin the node returns. The state lock must be held.
func (s *Service) inputCoin(ctx context.Context) (chain.CoinOutput, error) {
	if s.state.lastOutput != nil && s.state.lastOutput.Amount > s.cfg.DispenseAmount {
		return *s.state.lastOutput, nil
	}

	// Headroom for fees across a full pipeline wave.
	atLeast := s.cfg.DispenseAmount * s.state.maxDepth * 2
	queryCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	coins, err := s.client.SpendableCoins(queryCtx, s.wallet.Address(), s.info.BaseAssetID, atLeast)
	if err != nil {
		return chain.CoinOutput{}, errors.Wrap(err, "fetch spendable coins")
	}
	if len(coins) == 0 {
		return chain.CoinOutput{}, errInsufficientBalance
	}
	largest := coins[0]
	for _, c := range coins[1:] {
		if c.Amount > largest.Amount {
			largest = c
		}
	}
	return largest, nil
}
