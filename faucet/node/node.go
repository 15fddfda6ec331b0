// Package node assembles the faucet: it dials the chain node, loads the
// wallet, wires the dispense pipeline and registers every long-running
// service in a registry with one lifecycle.
package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fuellabs/go-faucet/chain"
	"github.com/fuellabs/go-faucet/faucet/auth"
	"github.com/fuellabs/go-faucet/faucet/auth/clerk"
	"github.com/fuellabs/go-faucet/faucet/dispenser"
	"github.com/fuellabs/go-faucet/faucet/flags"
	"github.com/fuellabs/go-faucet/faucet/server"
	"github.com/fuellabs/go-faucet/faucet/session"
	"github.com/fuellabs/go-faucet/monitoring/prometheus"
	"github.com/fuellabs/go-faucet/runtime"
	"github.com/fuellabs/go-faucet/shared/clock"
	"github.com/fuellabs/go-faucet/wallet"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "node")

// startupTimeout bounds the initial node handshake.
const startupTimeout = 30 * time.Second

// FaucetNode handles the lifecycle of the entire system and registers
// services to a service registry.
type FaucetNode struct {
	cliCtx   *cli.Context
	lock     sync.RWMutex
	services *runtime.ServiceRegistry
	stop     chan struct{} // Channel to wait for termination notifications.
}

// New creates a faucet node instance from CLI configuration: it fetches the
// chain parameters, builds every component and registers the services.
func New(cliCtx *cli.Context) (*FaucetNode, error) {
	registry := runtime.NewServiceRegistry()
	n := &FaucetNode{
		cliCtx:   cliCtx,
		services: registry,
		stop:     make(chan struct{}),
	}

	secret := cliCtx.String(flags.WalletSecretKeyFlag.Name)
	if secret == "" {
		log.Warn("No wallet secret key configured, falling back to the development key")
		secret = wallet.DevSecretKey
	}
	w, err := wallet.FromHex(secret)
	if err != nil {
		return nil, errors.Wrap(err, "load wallet")
	}
	log.WithField("address", w.Address().Hex()).Info("Faucet wallet loaded")

	nodeURL := cliCtx.String(flags.NodeURLFlag.Name)
	client := chain.New(nodeURL)
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	info, err := client.ChainInfo(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch chain info from %s", nodeURL)
	}
	log.WithFields(logrus.Fields{
		"chainID":  info.ChainID,
		"maxDepth": info.MaxDepth,
	}).Info("Connected to node")

	window := cliCtx.Uint64(flags.DispenseLimitIntervalFlag.Name)
	d := dispenser.NewService(
		dispenser.Config{
			DispenseAmount: cliCtx.Uint64(flags.DispenseAmountFlag.Name),
			Window:         window,
			Timeout:        time.Duration(cliCtx.Uint64(flags.TimeoutSecondsFlag.Name)) * time.Second,
			Retries:        cliCtx.Uint64(flags.NumberOfRetriesFlag.Name),
		},
		w,
		client,
		info,
		dispenser.NewState(cliCtx.Uint64(flags.MinGasPriceFlag.Name), info.MaxDepth),
		dispenser.NewTracker(clock.System{}),
	)

	var authnz auth.Handler
	if clerkSecret := cliCtx.String(flags.ClerkSecretKeyFlag.Name); clerkSecret != "" {
		authnz = clerk.New(clerkSecret)
	}

	publicURL := cliCtx.String(flags.PublicNodeURLFlag.Name)
	if publicURL == "" {
		publicURL = nodeURL
	}
	sessionTTL := time.Duration(window) * time.Second
	httpSvc := server.New(context.Background(), &server.Config{
		Host:          cliCtx.String(flags.HostFlag.Name),
		Port:          cliCtx.Int(flags.PortFlag.Name),
		PublicNodeURL: publicURL,
		CaptchaSecret: cliCtx.String(flags.CaptchaSecretFlag.Name),
		CaptchaKey:    cliCtx.String(flags.CaptchaKeyFlag.Name),
		ClerkPubKey:   cliCtx.String(flags.ClerkPubKeyFlag.Name),
	}, d,
		dispenser.NewPowVerifier(uint8(cliCtx.Uint(flags.PowDifficultyFlag.Name))),
		session.NewStore(sessionTTL),
		session.NewAuthStore(sessionTTL),
		authnz,
		client,
	)
	if err := registry.RegisterService(httpSvc); err != nil {
		return nil, err
	}

	if port := cliCtx.Int(flags.MonitoringPortFlag.Name); port > 0 {
		promSvc := prometheus.NewService(fmt.Sprintf(":%d", port), registry)
		if err := registry.RegisterService(promSvc); err != nil {
			return nil, err
		}
	}

	return n, nil
}

// Start the faucet and kick off every registered service.
func (n *FaucetNode) Start() {
	n.lock.Lock()
	n.services.StartAll()
	n.lock.Unlock()

	stop := n.stop
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		go n.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic")
			}
		}
		panic("Panic closing the faucet node")
	}()

	// Wait for stop channel to be closed.
	<-stop
}

// Close handles graceful shutdown of the system.
func (n *FaucetNode) Close() {
	n.lock.Lock()
	defer n.lock.Unlock()

	log.Info("Stopping faucet node")
	n.services.StopAll()
	close(n.stop)
}
