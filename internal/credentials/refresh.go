package credentials

import (
	"bufio"
	"context"
	"database/sql"
	"os"
	"strings"
	"time"

	"github.com/nslz/broquet/internal/logger"
)

// DefaultRefreshInterval is how often the refresher re-reads its sources.
const DefaultRefreshInterval = 30 * time.Second

// Refresher periodically merges external credential sources into the store.
// Two sources are supported: a line-oriented "username,password" file and an
// optional users database with bcrypt-hashed secrets.
type Refresher struct {
	store    *Store
	filePath string
	db       *sql.DB
	interval time.Duration
	log      *logger.Logger
}

func NewRefresher(store *Store, filePath string, db *sql.DB, interval time.Duration, log *logger.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		store:    store,
		filePath: filePath,
		db:       db,
		interval: interval,
		log:      log,
	}
}

// Run polls the sources until the context is cancelled. Source errors are
// logged and the loop continues.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh()
		}
	}
}

func (r *Refresher) refresh() {
	if r.filePath != "" {
		if err := r.loadFile(); err != nil {
			r.log.LogError(err, "Failed reading credentials file")
		}
	}
	if r.db != nil {
		if err := r.loadDB(); err != nil {
			r.log.LogError(err, "Failed reading users database")
		}
	}
}

// loadFile reads "username,password" lines, adding usernames not yet known.
func (r *Refresher) loadFile() error {
	f, err := os.Open(r.filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		username, password, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		if !r.store.Has(username) {
			r.store.Add(username, password)
		}
	}
	return scanner.Err()
}

// loadDB merges the users table. Secrets are bcrypt hashes; the store
// verifies them lazily on CONNECT.
func (r *Refresher) loadDB() error {
	rows, err := r.db.Query("SELECT username, secret FROM users")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var username, secret string
		if err := rows.Scan(&username, &secret); err != nil {
			return err
		}
		if !r.store.Has(username) {
			r.store.Add(username, secret)
		}
	}
	return rows.Err()
}
