package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"confidee-relayer/internal/config"
	"confidee-relayer/internal/factory"
	"confidee-relayer/internal/handler"
	"confidee-relayer/internal/util"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Loads config, initializes the logger, stores and clients
	f, err := factory.NewFactory()
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	cfg := f.Config()

	api := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      setupRouter(f),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	servers := []*http.Server{api}

	if cfg.Server.EnableTLS {
		tlsManager := f.TLSManager()
		api.Addr = fmt.Sprintf(":%d", cfg.Server.TLSPort)
		api.TLSConfig = tlsManager.GetTLSConfig()

		// ACME http-01 challenges and the http->https redirect share the plain port
		if acm := tlsManager.GetAutocertManager(); acm != nil {
			servers = append(servers, challengeServer(cfg, acm))
		}

		util.Info("Starting HTTPS server",
			util.String("environment", cfg.Environment),
			util.Int("port", cfg.Server.TLSPort),
			util.Bool("auto_cert", cfg.Server.AutoCert),
		)
	} else {
		util.Warn("Starting HTTP server - TLS is disabled",
			util.String("environment", cfg.Environment),
			util.Int("port", cfg.Server.Port),
		)
	}

	for _, srv := range servers {
		go serve(srv)
	}

	waitForShutdown(f, servers...)
}

// setupRouter wires the session and relay handlers into the chi router
func setupRouter(f *factory.Factory) http.Handler {
	cfg := f.Config()
	logger := f.Logger()

	sessionHandler := handler.NewSessionHandler(f.SessionService(), f.Limiter(), logger.Named("http"))
	relayHandler := handler.NewRelayHandler(f.RelayService(), logger.Named("http"))

	return handler.NewRouter(handler.RouterConfig{
		RequireHTTPS:   cfg.Server.EnableTLS,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IPLimiter:      f.IPLimiter(),
		Health:         f.Health,
		RequestTimeout: 60 * time.Second,
	}, sessionHandler, relayHandler, logger)
}

func challengeServer(cfg *config.Config, acm *autocert.Manager) *http.Server {
	return &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           acm.HTTPHandler(nil),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func serve(srv *http.Server) {
	var err error
	if srv.TLSConfig != nil {
		// certificates come from TLSConfig.GetCertificate
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		util.Fatal("Server failed", util.String("address", srv.Addr), util.ErrorField(err))
	}
}

func waitForShutdown(f *factory.Factory, servers ...*http.Server) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-signalChan
	util.Info("Received shutdown signal", util.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			util.Error("Failed to shutdown server gracefully",
				util.String("address", srv.Addr),
				util.ErrorField(err))
		}
	}
	util.Info("Servers stopped")
	f.Close()
}
