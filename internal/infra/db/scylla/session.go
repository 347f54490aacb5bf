package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/gocql/gocql"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type SessionConfig struct {
	Hosts             []string
	Keyspace          string
	Timeout           time.Duration
	Consistency       gocql.Consistency
	ReplicationFactor int
	Username          string
	Password          string
}

// NewSession ensures the keyspace and timeline table exist and returns a session bound to the keyspace.
func NewSession(ctx context.Context, cfg SessionConfig, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(cfg.Keyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", cfg.Keyspace)
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}
	if cfg.Consistency == 0 {
		cfg.Consistency = gocql.Quorum
	}

	base, err := cluster(cfg, "").CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer base.Close()
	keyspace := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.Keyspace, cfg.ReplicationFactor,
	)
	if err := base.Query(keyspace).WithContext(ctx).Exec(); err != nil {
		return nil, fmt.Errorf("create keyspace: %w", err)
	}

	session, err := cluster(cfg, cfg.Keyspace).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", cfg.Keyspace, err)
	}
	table := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.booking_timeline (
	booking_id text,
	at timestamp,
	event_id text,
	event text,
	status text,
	reason text,
	property_id text,
	PRIMARY KEY (booking_id, at, event_id)
) WITH CLUSTERING ORDER BY (at ASC, event_id ASC);`, cfg.Keyspace)
	if err := session.Query(table).WithContext(ctx).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("create booking_timeline table: %w", err)
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", cfg.Hosts, "keyspace", cfg.Keyspace)
	}
	return session, nil
}

func cluster(cfg SessionConfig, keyspace string) *gocql.ClusterConfig {
	c := gocql.NewCluster(cfg.Hosts...)
	c.Keyspace = keyspace
	c.Consistency = cfg.Consistency
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
		c.ConnectTimeout = cfg.Timeout
	}
	if cfg.Username != "" {
		c.Authenticator = gocql.PasswordAuthenticator{Username: cfg.Username, Password: cfg.Password}
	}
	return c
}
