// Package flags defines the faucet's command line and environment
// configuration surface.
package flags

import (
	"github.com/urfave/cli/v2"
)

var (
	// PortFlag is the HTTP bind port.
	PortFlag = &cli.IntFlag{
		Name:    "port",
		Usage:   "Port the faucet HTTP server listens on",
		Value:   3000,
		EnvVars: []string{"PORT"},
	}
	// HostFlag is the HTTP bind host.
	HostFlag = &cli.StringFlag{
		Name:    "host",
		Usage:   "Host the faucet HTTP server binds to",
		Value:   "",
		EnvVars: []string{"HOST"},
	}
	// NodeURLFlag is the chain node the faucet dispenses from.
	NodeURLFlag = &cli.StringFlag{
		Name:    "node-url",
		Usage:   "URL of the chain node to submit transactions to",
		Value:   "http://127.0.0.1:4000",
		EnvVars: []string{"FUEL_NODE_URL"},
	}
	// PublicNodeURLFlag is the node URL rendered into the landing page.
	PublicNodeURLFlag = &cli.StringFlag{
		Name:    "public-node-url",
		Usage:   "Publicly reachable node URL injected into the web page; defaults to --node-url",
		EnvVars: []string{"PUBLIC_FUEL_NODE_URL"},
	}
	// WalletSecretKeyFlag is the faucet hot key. Defaults to the well-known
	// development key.
	WalletSecretKeyFlag = &cli.StringFlag{
		Name:    "wallet-secret-key",
		Usage:   "Hex encoded private key of the faucet wallet",
		EnvVars: []string{"WALLET_SECRET_KEY"},
	}
	// DispenseAmountFlag is the grant per request.
	DispenseAmountFlag = &cli.Uint64Flag{
		Name:    "dispense-amount",
		Usage:   "Base asset tokens granted per dispense",
		Value:   10_000_000,
		EnvVars: []string{"DISPENSE_AMOUNT"},
	}
	// DispenseLimitIntervalFlag is the per-identity rate window in seconds.
	DispenseLimitIntervalFlag = &cli.Uint64Flag{
		Name:    "dispense-limit-interval",
		Usage:   "Seconds an identity must wait between dispenses",
		Value:   86_400,
		EnvVars: []string{"DISPENSE_LIMIT_INTERVAL"},
	}
	// MinGasPriceFlag is the mempool priority floor.
	MinGasPriceFlag = &cli.Uint64Flag{
		Name:    "min-gas-price",
		Usage:   "Lowest priority tier assigned to a dispense transaction",
		Value:   0,
		EnvVars: []string{"MIN_GAS_PRICE"},
	}
	// TimeoutSecondsFlag bounds each node RPC.
	TimeoutSecondsFlag = &cli.Uint64Flag{
		Name:    "timeout",
		Usage:   "Per-RPC deadline in seconds",
		Value:   30,
		EnvVars: []string{"TIMEOUT_SECONDS"},
	}
	// PowDifficultyFlag is the proof of work leading zero bits target.
	PowDifficultyFlag = &cli.UintFlag{
		Name:    "pow-difficulty",
		Usage:   "Leading zero bits a proof of work solution must reach",
		Value:   20,
		EnvVars: []string{"POW_DIFFICULTY"},
	}
	// NumberOfRetriesFlag caps pipeline submission retries.
	NumberOfRetriesFlag = &cli.Uint64Flag{
		Name:    "number-of-retries",
		Usage:   "How often a failed transaction submission is retried",
		Value:   5,
		EnvVars: []string{"NUMBER_OF_RETRIES"},
	}
	// CaptchaSecretFlag enables captcha checks on session creation.
	CaptchaSecretFlag = &cli.StringFlag{
		Name:    "captcha-secret",
		Usage:   "Captcha provider secret; captcha checks are skipped when unset",
		EnvVars: []string{"CAPTCHA_SECRET"},
	}
	// CaptchaKeyFlag is the captcha site key rendered into the page.
	CaptchaKeyFlag = &cli.StringFlag{
		Name:    "captcha-key",
		Usage:   "Captcha provider site key",
		EnvVars: []string{"CAPTCHA_KEY"},
	}
	// ClerkSecretKeyFlag enables the identity provider auth flow.
	ClerkSecretKeyFlag = &cli.StringFlag{
		Name:    "clerk-secret-key",
		Usage:   "Clerk backend API secret; the auth dispense flow is disabled when unset",
		EnvVars: []string{"CLERK_SECRET_KEY"},
	}
	// ClerkPubKeyFlag is the publishable key rendered into the page.
	ClerkPubKeyFlag = &cli.StringFlag{
		Name:    "clerk-pub-key",
		Usage:   "Clerk publishable key",
		EnvVars: []string{"CLERK_PUB_KEY"},
	}
	// HumanLoggingFlag switches between text and JSON log output.
	HumanLoggingFlag = &cli.BoolFlag{
		Name:    "human-logging",
		Usage:   "Log in a human readable text format instead of JSON",
		Value:   true,
		EnvVars: []string{"HUMAN_LOGGING"},
	}
	// LogFilterFlag sets the log level.
	LogFilterFlag = &cli.StringFlag{
		Name:    "log-filter",
		Usage:   "Lowest log level to emit (trace, debug, info, warn, error)",
		Value:   "info",
		EnvVars: []string{"LOG_FILTER"},
	}
	// MonitoringPortFlag is the metrics listener port.
	MonitoringPortFlag = &cli.IntFlag{
		Name:    "monitoring-port",
		Usage:   "Port of the prometheus metrics listener; 0 disables it",
		Value:   8080,
		EnvVars: []string{"MONITORING_PORT"},
	}
)

// Flags is every flag the faucet accepts.
var Flags = []cli.Flag{
	PortFlag,
	HostFlag,
	NodeURLFlag,
	PublicNodeURLFlag,
	WalletSecretKeyFlag,
	DispenseAmountFlag,
	DispenseLimitIntervalFlag,
	MinGasPriceFlag,
	TimeoutSecondsFlag,
	PowDifficultyFlag,
	NumberOfRetriesFlag,
	CaptchaSecretFlag,
	CaptchaKeyFlag,
	ClerkSecretKeyFlag,
	ClerkPubKeyFlag,
	HumanLoggingFlag,
	LogFilterFlag,
	MonitoringPortFlag,
}
