// Package server wires the filevault server together: metadata store,
// block storage, the optional S3 archive, services and the HTTP endpoint.
// It also handles graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/memory"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/services"
	"github.com/dmitrijs2005/filevault/internal/server/signer"
	"github.com/dmitrijs2005/filevault/internal/server/storage"
	"github.com/dmitrijs2005/filevault/internal/server/storage/archive"
	"github.com/dmitrijs2005/filevault/internal/server/web"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	conn    *sql.DB
	uploads *services.UploadService
	files   *services.FileService
	folders *services.FolderService
	signer  *signer.Signer
}

// openStore returns the metadata database and its repository manager.
// The returned *sql.DB is nil for the in-memory store.
func openStore(ctx context.Context, dsn string) (dbx.Database, repomanager.RepositoryManager, *sql.DB, error) {
	if dsn == config.MemoryDSN {
		store := memory.NewStore()
		return store, repomanager.NewInMemoryRepositoryManager(store), nil, nil
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("db ping error: %w", err)
	}
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("migrations error: %w", err)
	}
	return dbx.NewSQLDatabase(conn, nil), rm, conn, nil
}

var storeOpener = openStore

// closeStore releases conn when NewApp fails after the store was opened.
func closeStore(conn *sql.DB) {
	if conn != nil {
		conn.Close()
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.New(os.Stdout, c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, err
	}

	db, rm, conn, err := storeOpener(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	fs, err := storage.NewFS(c.DataRoot)
	if err != nil {
		closeStore(conn)
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	var archiver services.Archiver
	if c.ArchiveBlocks {
		a, err := archive.New(ctx, archive.Options{
			Region:       c.S3Region,
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			closeStore(conn)
			return nil, fmt.Errorf("archive init error: %w", err)
		}
		archiver = a
	}

	blocks := services.NewBlockStore(fs, archiver, logger)

	return &App{
		config:  c,
		logger:  logger,
		conn:    conn,
		uploads: services.NewUploadService(db, rm, fs, blocks, logger),
		files:   services.NewFileService(db, rm, blocks, logger),
		folders: services.NewFolderService(db, rm, logger),
		signer:  signer.New(c.SecretKey, c.SignerID),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := web.NewServer(app.config, app.logger, app.uploads, app.files, app.folders, app.signer)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until the process is signalled or the listener fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.conn != nil {
		if err := app.conn.Close(); err != nil {
			app.logger.Error(ctx, "db close error", "error", err)
		}
	}
	app.logger.Info(ctx, "App stopped")
}
