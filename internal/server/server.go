package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"

	"github.com/titaev-lv/keyguard-service/internal/config"
)

// Server exposes the admission engine over mTLS HTTP.
type Server struct {
	httpServer  *http.Server
	engine      Authorizer
	aclChecker  *ACLChecker
	rateLimiter *RateLimiter
	config      *config.ServerConfig
}

// NewServer creates a new server with TLS and mTLS configuration
func NewServer(cfg *config.ServerConfig, engine Authorizer, aclChecker *ACLChecker, rateLimiter *RateLimiter) (*Server, error) {
	// 1. Load server certificate
	serverCert, err := tls.LoadX509KeyPair(
		cfg.TLS.CertPath,
		cfg.TLS.KeyPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	// 2. Load CA for client verification
	caCert, err := os.ReadFile(cfg.TLS.CAPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	// 3. TLS Config with mTLS
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    caCertPool,
		MinVersion:   tls.VersionTLS13,
		CipherSuites: []uint16{
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_CHACHA20_POLY1305_SHA256,
		},
	}

	// 4. Create HTTP router
	mux := http.NewServeMux()

	// Register endpoints
	mux.HandleFunc("/authorize", AuthorizeHandler(engine, aclChecker))
	mux.HandleFunc("/health", HealthHandler(engine))
	mux.Handle("/metrics", promhttp.Handler())

	// 5. Apply middleware stack (rate limit -> recovery -> audit -> request log)
	handler := RateLimitMiddleware(rateLimiter)(
		RecoveryMiddleware(
			AuditLogMiddleware(
				RequestLogMiddleware(mux),
			),
		),
	)

	// 6. Create HTTP server
	httpServer := &http.Server{
		Addr:      ":" + cfg.Port,
		Handler:   handler,
		TLSConfig: tlsConfig,
	}

	// 7. Apply HTTP/2 tuning
	if err := configureHTTP2(httpServer, &cfg.HTTP2); err != nil {
		return nil, fmt.Errorf("failed to configure HTTP/2: %w", err)
	}

	return &Server{
		httpServer:  httpServer,
		engine:      engine,
		aclChecker:  aclChecker,
		rateLimiter: rateLimiter,
		config:      cfg,
	}, nil
}

// configureHTTP2 applies the parsed HTTP/2 settings to the server
func configureHTTP2(srv *http.Server, cfg *config.HTTP2Config) error {
	parsed, err := cfg.Parse()
	if err != nil {
		return err
	}

	h2 := &http2.Server{
		MaxConcurrentStreams:         parsed.MaxConcurrentStreams,
		MaxReadFrameSize:             parsed.MaxFrameSize,
		MaxUploadBufferPerConnection: parsed.MaxUploadBufferPerConn,
		MaxUploadBufferPerStream:     parsed.MaxUploadBufferPerStream,
	}
	if parsed.IdleTimeoutSeconds > 0 {
		h2.IdleTimeout = time.Duration(parsed.IdleTimeoutSeconds) * time.Second
	}
	// The per-stream upload buffer is the effective initial window
	if h2.MaxUploadBufferPerStream == 0 && parsed.InitialWindowSize > 0 {
		h2.MaxUploadBufferPerStream = parsed.InitialWindowSize
	}
	if parsed.MaxHeaderListSize > 0 {
		srv.MaxHeaderBytes = int(parsed.MaxHeaderListSize)
	}

	return http2.ConfigureServer(srv, h2)
}

// Start starts the HTTPS server
func (s *Server) Start() error {
	// Server will use certificates from TLSConfig
	return s.httpServer.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	return s.httpServer.Close()
}
