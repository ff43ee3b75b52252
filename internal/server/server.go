package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/testifysec/gatekeeper-authoring/pkg/handler"
	"github.com/testifysec/gatekeeper-authoring/pkg/lint"
	"github.com/testifysec/gatekeeper-authoring/pkg/watcher"
)

const (
	DefaultAddress = "localhost"
	DefaultPort    = 8090

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type Config struct {
	Address string
	Port    int

	// CertFile and KeyFile enable TLS. Both are reloaded when they change
	// on disk.
	CertFile string
	KeyFile  string
	// ClientCAFile requires clients to present a certificate signed by it.
	ClientCAFile string

	// PolicyRoot bounds which schema files clients may have looked up.
	// Empty means clients must send their schema inline.
	PolicyRoot string

	ReloadInterval time.Duration
	Loader         lint.Loader
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Server serves the lint handler, over TLS when a certificate is configured.
type Server struct {
	config    Config
	tlsConfig *tls.Config
	keypair   *keypair
	watcher   *watcher.Watcher
}

type keypair struct {
	lock        sync.RWMutex
	certificate *tls.Certificate
	certFile    string
	keyFile     string
}

func (k *keypair) load() error {
	certificate, err := tls.LoadX509KeyPair(k.certFile, k.keyFile)
	if err != nil {
		return fmt.Errorf("loading key pair %s, %s: %w", k.certFile, k.keyFile, err)
	}

	k.lock.Lock()
	defer k.lock.Unlock()
	k.certificate = &certificate
	return nil
}

func (k *keypair) get(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	k.lock.RLock()
	defer k.lock.RUnlock()
	return k.certificate, nil
}

// New validates the configuration and loads the TLS material. The
// certificate watcher stops with ctx.
func New(ctx context.Context, config Config) (*Server, error) {
	if config.PolicyRoot != "" {
		root, err := filepath.Abs(config.PolicyRoot)
		if err != nil {
			return nil, fmt.Errorf("resolving policy root: %w", err)
		}
		config.PolicyRoot = root
	}
	s := &Server{config: config}

	if (config.CertFile == "") != (config.KeyFile == "") {
		return nil, errors.New("tls certificate and key must be given together")
	}
	if config.CertFile == "" {
		if config.ClientCAFile != "" {
			return nil, errors.New("a client CA requires a tls certificate and key")
		}
		return s, nil
	}

	s.keypair = &keypair{certFile: config.CertFile, keyFile: config.KeyFile}
	if err := s.keypair.load(); err != nil {
		return nil, err
	}

	w, err := watcher.New(ctx, config.ReloadInterval, []string{config.CertFile, config.KeyFile}, func(changed []string) error {
		klog.InfoS("reloading tls key pair", "files", changed)
		return s.keypair.load()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	s.watcher = w

	s.tlsConfig = &tls.Config{
		MinVersion:     tls.VersionTLS13,
		GetCertificate: s.keypair.get,
	}

	if config.ClientCAFile != "" {
		caCert, err := os.ReadFile(config.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("reading client CA certificate from path %s: %w", config.ClientCAFile, err)
		}
		clientCAs := x509.NewCertPool()
		if !clientCAs.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates found in %s", config.ClientCAFile)
		}
		s.tlsConfig.ClientCAs = clientCAs
		s.tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return s, nil
}

// TLS reports whether the server terminates TLS.
func (s *Server) TLS() bool {
	return s.tlsConfig != nil
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	mux := http.NewServeMux()
	handler.NewLintHandler(s.config.Loader, s.config.PolicyRoot).Register(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if s.tlsConfig != nil {
		l = tls.NewListener(l, s.tlsConfig)
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	klog.InfoS("starting lint server", "address", l.Addr().String(), "tls", s.TLS(), "policyRoot", s.config.PolicyRoot)
	if err := server.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server exited: %w", err)
	}
	return <-shutdownErr
}
