// Package sqlitetelemetry records into an in-memory SQLite database with
// periodic disk dumps via VACUUM INTO. It wraps the gorm backend; the only
// SQLite-specific concerns are the in-memory DB and the dump loop.
package sqlitetelemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/trackday/vehsim/internal/config"
	"github.com/trackday/vehsim/internal/database"
	gormtelemetry "github.com/trackday/vehsim/internal/telemetry/gorm"
)

// Backend wraps the gorm backend for SQLite-specific behavior.
type Backend struct {
	*gormtelemetry.Backend
	db       *gorm.DB
	cfg      config.SQLiteConfig
	log      zerolog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new SQLite telemetry backend.
func New(cfg config.SQLiteConfig, log zerolog.Logger) (*Backend, error) {
	db, err := database.GetSqliteDB("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend:  gormtelemetry.New(gormtelemetry.Dependencies{DB: db, Logger: log}),
		db:       db,
		cfg:      cfg,
		log:      log,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded gorm backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.Path != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// EndSession closes the session and dumps the database so the file on disk
// always holds every finished session.
func (b *Backend) EndSession() error {
	if err := b.Backend.EndSession(); err != nil {
		return err
	}
	return b.dump()
}

// Close stops the dump goroutine and closes the embedded gorm backend.
func (b *Backend) Close() error {
	close(b.stopChan)
	b.wg.Wait()
	return b.Backend.Close()
}

func (b *Backend) dump() error {
	if b.cfg.Path == "" {
		return nil
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.Path); err != nil {
		b.log.Error().Err(err).Str("path", b.cfg.Path).Msg("Error dumping to disk")
		return err
	}
	b.log.Debug().Dur("took", time.Since(start)).Str("path", b.cfg.Path).Msg("Dumped to disk")
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.dump()
		}
	}
}
