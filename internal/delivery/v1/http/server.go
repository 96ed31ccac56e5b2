package http

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
)

const maxHeaderBytes = 1 << 20

// Server обслуживает REST API сервиса вкусов. Остановленный сервер не считается ошибкой Run/Serve.
type Server struct {
	httpServer *http.Server
	logger     logger.Logger
}

func NewServer(handler http.Handler, cfg *cfg.HTTPConfig, logger logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    maxHeaderBytes,
		},
		logger: logger,
	}
}

func (s *Server) Run() error {
	return ignoreClosed(s.httpServer.ListenAndServe())
}

// Serve принимает соединения на готовом listener.
func (s *Server) Serve(lis net.Listener) error {
	return ignoreClosed(s.httpServer.Serve(lis))
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warnf("HTTP server forced to stop: %v", err)
		return err
	}

	s.logger.Infof("HTTP server stopped gracefully")
	return nil
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
