package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/keywordsearch/config"
	"github.com/meghashyamc/keywordsearch/db/kvdb"
	"github.com/meghashyamc/keywordsearch/db/searchdb"
	"github.com/meghashyamc/keywordsearch/logger"
	"github.com/meghashyamc/keywordsearch/services/download"
	"github.com/meghashyamc/keywordsearch/storage"
	"github.com/meghashyamc/keywordsearch/validation"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type server struct {
	cfg        *config.Config
	router     *gin.Engine
	httpServer *http.Server
	root       *storage.Root
	kvdb       kvdb.DB
	searchdb   *searchdb.BleveDB
	validator  *validation.Validator
	logger     logger.Logger
	bindAddr   string
	prefix     download.Prefix
}

// Run serves the API until ctx is cancelled or the process receives SIGINT or SIGTERM.
// Errors in the configuration are returned before anything is served.
func Run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := &server{
		cfg:    cfg,
		logger: logger.New(cfg.GetLogLevel()),
	}
	if err := s.resolveAddresses(); err != nil {
		return err
	}
	if err := s.setupDependencies(ctx); err != nil {
		return err
	}
	defer s.closeDependencies()

	s.setupRouter()
	s.setupHTTPServer()

	return s.serve(ctx)
}

func (s *server) resolveAddresses() error {
	var err error
	s.bindAddr, err = s.cfg.GetBindAddress()
	if err != nil {
		s.logger.Error("invalid socket options", "err", err.Error())
		return err
	}
	s.prefix, err = download.Resolve(s.cfg.GetDownloadURLPrefix(), s.bindAddr)
	if err != nil {
		s.logger.Error("could not resolve download url prefix", "bind_address", s.bindAddr, "err", err.Error())
		return err
	}
	s.logger.Info("download url prefix resolved", "prefix", s.prefix.String())

	return nil
}

func (s *server) setupDependencies(ctx context.Context) error {
	var err error
	s.root, err = storage.New(s.cfg.GetStorageRoot())
	if err != nil {
		s.logger.Error("error creating storage root", "err", err.Error())
		return err
	}
	kvDB, err := kvdb.New(s.logger, s.cfg.GetKVDBPath())
	if err != nil {
		s.logger.Error("error creating kvDB", "err", err.Error())
		return err
	}
	s.kvdb = kvDB
	s.searchdb, err = searchdb.New(s.logger, s.cfg.GetMemoryBudget(), s.cfg.GetIndexCacheSize())
	if err != nil {
		s.logger.Error("error creating searchDB", "err", err.Error())
		return err
	}
	if err := s.searchdb.Watch(ctx, s.root.Path()); err != nil {
		s.logger.Warn("index directories will not be watched", "err", err.Error())
	}
	s.validator, err = validation.New(s.logger)
	if err != nil {
		s.logger.Error("error creating validator", "err", err.Error())
		return err
	}

	return nil
}

func (s *server) closeDependencies() {
	if s.searchdb != nil {
		s.searchdb.Close()
	}
	if s.kvdb != nil {
		if err := s.kvdb.Close(); err != nil {
			s.logger.Error("error closing kvDB", "err", err.Error())
		}
	}
}

func (s *server) setupRouter() {
	router := newRouter(s.cfg.GetRateLimit())

	router.Use(loggingMiddleware(s.logger))

	setupRoutes(router, s.logger, s.cfg, s.searchdb, s.kvdb, s.root, s.validator, s.prefix)

	s.router = router
}

func (s *server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:    s.bindAddr,
		Handler: s.router.Handler(),
	}
}

func (s *server) serve(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.logger.Info("http server listening", "address", s.bindAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "err", err.Error())
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		s.logger.Info("starting to shut down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error shutting down http server", "err", err.Error())
			return err
		}
		s.logger.Info("shut down http server successfully")
		return nil
	})

	return group.Wait()
}
