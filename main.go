package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/titaev-lv/keyguard-service/internal/config"
	"github.com/titaev-lv/keyguard-service/internal/enforce"
	"github.com/titaev-lv/keyguard-service/internal/hsm"
	"github.com/titaev-lv/keyguard-service/internal/server"
)

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize logging
	if err := server.InitLogger(&cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// 3. Initialize the token MAC verifier (HSM-backed, or software
	// fallback when no PKCS#11 library is configured)
	verifier, err := initVerifier(&cfg.HSM)
	if err != nil {
		log.Fatalf("Failed to initialize token verifier: %v", err)
	}

	// 4. Build the enforcement engine for this boot session
	engine := enforce.New(
		enforce.NewBootClock(),
		verifier,
		cfg.Enforcement.MaxRateLimitedKeys,
		cfg.Enforcement.MaxUseCountedKeys,
	)

	// 5. Initialize ACL checker
	aclChecker, err := server.NewACLChecker(&cfg.ACL)
	if err != nil {
		log.Fatalf("Failed to initialize ACL checker: %v", err)
	}

	// 6. Create transport rate limiter
	rateLimiter := server.NewRateLimiter(
		cfg.RateLimit.RequestsPerSecond,
		cfg.RateLimit.Burst,
	)

	// 7. Create server with all components
	srv, err := server.NewServer(&cfg.Server, engine, aclChecker, rateLimiter)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// 8. Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 9. Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		log.Printf("Starting keyguard service on port %s", cfg.Server.Port)
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	// 10. Wait for shutdown signal or error
	select {
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		if err := srv.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := aclChecker.StopAutoReload(ctx); err != nil {
			log.Printf("Error stopping ACL auto-reload: %v", err)
		}
		cancel()

		// Close verifier (HSM session or key material) with panic recovery
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Recovered from panic during verifier cleanup: %v", r)
				}
			}()
			if err := verifier.Close(); err != nil {
				log.Printf("Error closing token verifier: %v", err)
			}
		}()
	}

	log.Println("keyguard service stopped")
}

// initVerifier picks the token MAC backend from configuration.
func initVerifier(cfg *config.HSMConfig) (hsm.TokenAuthority, error) {
	if cfg.PKCS11Lib != "" {
		pin := os.Getenv("HSM_PIN")
		if pin == "" {
			log.Fatal("HSM_PIN environment variable not set")
		}
		return hsm.InitVerifier(cfg, pin)
	}
	return hsm.LoadSoftVerifier(cfg.SoftKeyFile)
}
