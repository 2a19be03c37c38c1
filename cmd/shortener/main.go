package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/atinyakov/tinylink/internal/app/server"
	grpcserver "github.com/atinyakov/tinylink/internal/app/server/grpc"
	"github.com/atinyakov/tinylink/internal/app/service"
	"github.com/atinyakov/tinylink/internal/config"
	"github.com/atinyakov/tinylink/internal/logger"
	"github.com/atinyakov/tinylink/internal/metrics"
	"github.com/atinyakov/tinylink/internal/repository"
	"github.com/atinyakov/tinylink/internal/storage"

	_ "net/http/pprof"
)

var (
	buildVersion = "N/A"
	buildDate    = "N/A"
	buildCommit  = "N/A"
)

const shutdownTimeout = 10 * time.Second

// store is what both the link service and auth need from persistence.
type store interface {
	service.LinkStorage
	service.UserStorage
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	options, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	if err := run(options); err != nil {
		log.Fatal(err)
	}
}

func run(options *config.Options) error {
	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)

	l := logger.New()
	if err := l.Init(options.LogLevel, options.LogEncoding); err != nil {
		return err
	}
	zapLogger := l.Log
	defer func() {
		_ = zapLogger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	s, closer, err := openStore(ctx, options, zapLogger)
	if err != nil {
		return err
	}
	defer closer.Close()

	secret := options.JWTSecret
	if secret == "" {
		secret = randomSecret()
		zapLogger.Warn("JWT_SECRET is not set, using a random secret; tokens will not survive a restart")
	}

	// The delete worker outlives the listeners so queued deletes are flushed.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	links := service.NewLinkService(workerCtx, s,
		service.NewCodeAllocator(s, nil, nil),
		service.NewClickRecorder(s, nil),
		zapLogger, options.ResultHostname)
	auth := service.NewAuth(s, secret, options.TokenTTL.Duration)
	m := metrics.New()

	httpServer := &http.Server{
		Addr:              options.Port,
		Handler:           server.Init(links, auth, zapLogger, m, options.TrustedSubnet),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 3)

	if options.EnablePprof {
		go func() {
			zapLogger.Info("Starting pprof server", zap.String("addr", "localhost:6060"))
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				zapLogger.Error("pprof server error", zap.Error(err))
			}
		}()
	}

	var grpcSrv *grpcserver.Server
	if options.GRPCPort > 0 {
		grpcSrv = grpcserver.New(zapLogger, links, auth, options.GRPCPort)
		go func() {
			errCh <- grpcSrv.Start()
		}()
	}

	go func() {
		if options.EnableHTTPS {
			manager := &autocert.Manager{
				Cache:      autocert.DirCache("cache-dir"),
				Prompt:     autocert.AcceptTOS,
				HostPolicy: autocert.HostWhitelist(hostOf(options.ResultHostname)),
			}
			httpServer.Addr = ":443"
			httpServer.TLSConfig = manager.TLSConfig()

			zapLogger.Info("Server is running with TLS", zap.String("host", hostOf(options.ResultHostname)))
			errCh <- httpServer.ListenAndServeTLS("", "")
			return
		}

		zapLogger.Info("Server is running", zap.String("addr", options.Port))
		errCh <- httpServer.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		zapLogger.Info("Shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP shutdown", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}

	stopWorker()
	select {
	case <-links.Done():
	case <-shutdownCtx.Done():
		zapLogger.Warn("Delete worker did not drain in time")
	}

	zapLogger.Info("Server stopped")
	return runErr
}

// openStore picks PostgreSQL when a DSN is set, SQLite when a file path is
// set, and memory otherwise.
func openStore(ctx context.Context, options *config.Options, zapLogger *zap.Logger) (store, io.Closer, error) {
	switch {
	case options.DatabaseDSN != "":
		zapLogger.Info("using postgres")
		db, err := repository.InitDB(ctx, options.DatabaseDSN, zapLogger)
		if err != nil {
			return nil, nil, err
		}
		zapLogger.Info("Database connected and tables ready")
		return repository.CreateLinkRepository(db, zapLogger), db, nil

	case options.SQLitePath != "":
		zapLogger.Info("using sqlite", zap.String("path", options.SQLitePath))
		s, err := storage.NewSQLiteStorage(options.SQLitePath, zapLogger)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	default:
		zapLogger.Info("using in memory storage")
		s, err := storage.CreateMemoryStorage()
		if err != nil {
			return nil, nil, err
		}
		return s, closerFunc(func() error { return nil }), nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return baseURL
	}
	return u.Hostname()
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
