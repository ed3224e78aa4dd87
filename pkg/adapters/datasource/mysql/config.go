package mysql

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// ConnectTimeout applies to each dial attempt.
	ConnectTimeout time.Duration
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// DefaultConnectTimeout returns the default per-attempt connect timeout.
func DefaultConnectTimeout() time.Duration {
	return 10 * time.Second
}

// Validate checks if the config has all required fields.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// DSN renders the config as a go-sql-driver connection string.
// ParseTime is enabled so TIMESTAMP/DATETIME columns scan as time.Time on
// both sides of the mirror and compare consistently.
func (c *Config) DSN() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort()
	}
	timeout := c.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout()
	}

	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", c.Host, port)
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Timeout = timeout

	return mc.FormatDSN()
}
