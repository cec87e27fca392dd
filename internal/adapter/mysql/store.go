// Package mysql is the MySQL destination store.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/guillermoBallester/tablesmith/internal/adapter/sqldb"
	"github.com/guillermoBallester/tablesmith/internal/adapter/store"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
)

func init() {
	store.Register("mysql", func(ctx context.Context, dsn string) (port.Store, error) {
		return Open(ctx, dsn)
	})
}

// Open connects to MySQL and pings it. dsn is either a driver DSN
// (user:pass@tcp(host:3306)/db) or a mysql:// URL.
func Open(ctx context.Context, dsn string) (*sqldb.Store, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connector: %w", err)
	}
	db := sql.OpenDB(connector)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database (10s timeout): %w", err)
	}
	return sqldb.NewStore(db, Dialect{}), nil
}

// ParseDSN builds a driver config with parseTime enabled and utf8mb4 as the
// connection charset.
func ParseDSN(dsn string) (*mysql.Config, error) {
	var (
		cfg *mysql.Config
		err error
	)
	if strings.HasPrefix(dsn, "mysql://") {
		cfg, err = fromURL(dsn)
	} else {
		cfg, err = mysql.ParseDSN(dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
	return cfg, nil
}

func fromURL(raw string) (*mysql.Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = u.Host + ":3306"
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	q := u.Query()
	if len(q) > 0 {
		cfg.Params = make(map[string]string, len(q))
		for k := range q {
			cfg.Params[k] = q.Get(k)
		}
	}
	return cfg, nil
}
