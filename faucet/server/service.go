// Package server exposes the faucet over HTTP: the dispense endpoints, the
// session and proof of work admission surface, and the landing page.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fuellabs/go-faucet/chain"
	"github.com/fuellabs/go-faucet/faucet/auth"
	"github.com/fuellabs/go-faucet/faucet/dispenser"
	"github.com/fuellabs/go-faucet/faucet/session"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "server")

const (
	// defaultMaxConcurrent is the global admission cap; requests beyond it
	// are shed with 503.
	defaultMaxConcurrent = 1024
	// defaultRequestTimeout bounds one request end to end.
	defaultRequestTimeout = 60 * time.Second
	// sessionRatePerSecond and sessionBurst throttle session creation per
	// client IP.
	sessionRatePerSecond = 1
	sessionBurst         = 10
)

// Config holds the HTTP surface parameters.
type Config struct {
	Host string
	Port int
	// MaxConcurrent caps requests in flight across all endpoints. Zero
	// means the default of 1024.
	MaxConcurrent int64
	// RequestTimeout is the per-request deadline. Zero means 60s.
	RequestTimeout time.Duration
	// PublicNodeURL is rendered into the landing page for wallets to dial.
	PublicNodeURL string
	// CaptchaSecret and CaptchaKey enable captcha checks on session
	// creation when set.
	CaptchaSecret string
	CaptchaKey    string
	// ClerkPubKey is rendered into the landing page for the auth flow.
	ClerkPubKey string
	// SessionRate and SessionBurst throttle session creation per client
	// IP. Zero means the defaults of 1/s with a burst of 10.
	SessionRate  float64
	SessionBurst int64
	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
}

// Service is the faucet HTTP server. It implements the runtime.Service
// lifecycle.
type Service struct {
	cfg       *Config
	dispenser *dispenser.Service
	pow       *dispenser.PowVerifier
	sessions  *session.Store
	authSess  *session.AuthStore
	authnz    auth.Handler
	node      chain.NodeClient
	captcha   captchaVerifier
	startTime time.Time
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	runErr    error
}

// New assembles the HTTP service. The auth handler may be nil when no
// identity provider is configured; the auth dispense flow then returns 401.
func New(ctx context.Context, cfg *Config, d *dispenser.Service, pow *dispenser.PowVerifier,
	sessions *session.Store, authSess *session.AuthStore, authnz auth.Handler, node chain.NodeClient) *Service {
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.SessionRate == 0 {
		cfg.SessionRate = sessionRatePerSecond
	}
	if cfg.SessionBurst == 0 {
		cfg.SessionBurst = sessionBurst
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Service{
		cfg:       cfg,
		dispenser: d,
		pow:       pow,
		sessions:  sessions,
		authSess:  authSess,
		authnz:    authnz,
		node:      node,
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	if cfg.CaptchaSecret != "" {
		s.captcha = newRecaptcha(cfg.CaptchaSecret)
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.buildHandler(),
	}
	return s
}

// Router wires every endpoint with its admission middleware.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/dispense", s.handleDispenseInfo).Methods(http.MethodGet)

	gate := newDispenseGate(int64(s.dispenser.MaxDepth()), s.cfg.MaxConcurrent)
	r.Handle("/dispense", gate.wrap(http.HandlerFunc(s.handleDispense))).Methods(http.MethodPost)

	limiter := newIPRateLimiter(s.cfg.SessionRate, s.cfg.SessionBurst)
	r.Handle("/session", limiter.wrap(http.HandlerFunc(s.handleCreateSession))).Methods(http.MethodPost)
	r.HandleFunc("/session", s.handleGetSession).Methods(http.MethodGet)

	r.HandleFunc("/api/session/validate", s.handleValidateSession).Methods(http.MethodPost)
	r.HandleFunc("/api/session/remove", s.handleRemoveSession).Methods(http.MethodPost)
	return r
}

func (s *Service) buildHandler() http.Handler {
	var h http.Handler = s.Router()
	h = timeoutMiddleware(h, s.cfg.RequestTimeout)
	h = concurrencyMiddleware(h, s.cfg.MaxConcurrent)
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(h)
}

// Start begins serving in the background. Part of the runtime.Service
// lifecycle; it must not block.
func (s *Service) Start() {
	log.WithField("address", s.server.Addr).Info("Starting faucet HTTP server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.runErr = err
			log.WithError(err).Error("Could not serve HTTP")
		}
	}()
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Service) Stop() error {
	defer s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Status reports a failed listener, if any.
func (s *Service) Status() error {
	if s.runErr != nil {
		return errors.Wrap(s.runErr, "http server")
	}
	return nil
}
