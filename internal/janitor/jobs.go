package janitor

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/kicadview/kicadview/internal/database"
	"github.com/kicadview/kicadview/internal/modules/settings"
	"github.com/kicadview/kicadview/internal/modules/viewer"
)

// SessionExpiryJob tears down viewer sessions older than the configured TTL.
// The TTL is re-read from settings on every run so operators can change it
// without a restart.
type SessionExpiryJob struct {
	service      *viewer.Service
	settingsRepo *settings.Repository
	defaultTTL   time.Duration
	log          zerolog.Logger
}

// NewSessionExpiryJob creates a new session expiry job
func NewSessionExpiryJob(service *viewer.Service, settingsRepo *settings.Repository, defaultTTL time.Duration, log zerolog.Logger) *SessionExpiryJob {
	return &SessionExpiryJob{
		service:      service,
		settingsRepo: settingsRepo,
		defaultTTL:   defaultTTL,
		log:          log.With().Str("job", "session_expiry").Logger(),
	}
}

// Run expires sessions older than the TTL.
func (j *SessionExpiryJob) Run() error {
	ttl := j.defaultTTL
	if j.settingsRepo != nil {
		minutes, err := j.settingsRepo.GetInt(settings.KeySessionTTLMinutes, int(j.defaultTTL.Minutes()))
		if err != nil {
			j.log.Warn().Err(err).Msg("Failed to read session TTL setting, using default")
		} else if minutes > 0 {
			ttl = time.Duration(minutes) * time.Minute
		}
	}

	closed := j.service.ExpireBefore(time.Now().Add(-ttl))
	if closed > 0 {
		j.log.Info().
			Int("closed", closed).
			Dur("ttl", ttl).
			Msg("Expired stale viewer sessions")
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *SessionExpiryJob) Name() string {
	return "session_expiry"
}

// DatabaseMaintenanceJob checkpoints and compacts the service's SQLite
// databases. Scheduled nightly, outside interactive hours.
type DatabaseMaintenanceJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewDatabaseMaintenanceJob creates a new database maintenance job
func NewDatabaseMaintenanceJob(databases map[string]*database.DB, log zerolog.Logger) *DatabaseMaintenanceJob {
	return &DatabaseMaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Run checkpoints WALs and vacuums each database. Failures on one database
// do not stop maintenance of the others.
func (j *DatabaseMaintenanceJob) Run() error {
	var lastErr error
	for name, db := range j.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
			lastErr = err
		}
		if err := db.Vacuum(); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("Vacuum failed")
			lastErr = err
			continue
		}
		j.log.Debug().Str("database", name).Msg("Database maintenance completed")
	}
	return lastErr
}

// Name returns the job name for scheduling and logging.
func (j *DatabaseMaintenanceJob) Name() string {
	return "db_maintenance"
}
