// Package web binds the file services to HTTP. Bearer-authenticated
// endpoints act on behalf of the token's user; upload and download
// endpoints are authorized by capability URLs minted by this package.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/services"
	"github.com/dmitrijs2005/filevault/internal/server/signer"
)

type Server struct {
	address    string
	logger     logging.Logger
	cfg        *config.Config
	uploads    *services.UploadService
	files      *services.FileService
	folders    *services.FolderService
	signer     *signer.Signer
	jwtSecret  []byte
	shutdownIn time.Duration
}

func NewServer(cfg *config.Config, l logging.Logger, us *services.UploadService, fs *services.FileService, fos *services.FolderService, sg *signer.Signer) *Server {
	return &Server{
		address:    cfg.EndpointAddrHTTP,
		logger:     l.With("module", "http_server"),
		cfg:        cfg,
		uploads:    us,
		files:      fs,
		folders:    fos,
		signer:     sg,
		jwtSecret:  []byte(cfg.SecretKey),
		shutdownIn: 10 * time.Second,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownIn)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "forced shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
