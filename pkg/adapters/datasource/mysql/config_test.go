package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg:  Config{Host: "db.internal", Port: 3306, User: "mirror", Database: "inventory"},
		},
		{
			name: "empty password is allowed",
			cfg:  Config{Host: "db.internal", Port: 3306, User: "mirror", Password: "", Database: "inventory"},
		},
		{
			name:    "missing host",
			cfg:     Config{Port: 3306, User: "mirror", Database: "inventory"},
			wantErr: "host is required",
		},
		{
			name:    "missing user",
			cfg:     Config{Host: "db.internal", Port: 3306, Database: "inventory"},
			wantErr: "user is required",
		},
		{
			name:    "missing database",
			cfg:     Config{Host: "db.internal", Port: 3306, User: "mirror"},
			wantErr: "database is required",
		},
		{
			name:    "invalid port",
			cfg:     Config{Host: "db.internal", Port: 70000, User: "mirror", Database: "inventory"},
			wantErr: "invalid port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{
		Host:           "db.internal",
		Port:           3307,
		User:           "mirror",
		Password:       "s3cret",
		Database:       "inventory",
		ConnectTimeout: 5 * time.Second,
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "mirror:s3cret@tcp(db.internal:3307)/inventory")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "timeout=5s")
}

func TestConfigDSN_Defaults(t *testing.T) {
	cfg := Config{Host: "db.internal", User: "mirror", Database: "inventory"}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "tcp(db.internal:3306)")
	assert.Contains(t, dsn, "timeout=10s")
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "`products`", QuoteIdentifier("products"))
	assert.Equal(t, "`odd``name`", QuoteIdentifier("odd`name"))
	assert.Equal(t, []string{"`a`", "`b`"}, QuoteIdentifiers([]string{"a", "b"}))
}
