package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected string
		contains []string
		wantErr  bool
	}{
		{
			name:     "defaults",
			cfg:      Config{User: "appms", Name: "engagement"},
			expected: "host=localhost port=5432 user=appms dbname=engagement TimeZone=UTC sslmode=disable",
		},
		{
			name: "overrides",
			cfg: Config{
				User:     "svc",
				Name:     "db",
				Host:     "pg.internal",
				Port:     6543,
				Password: "pass",
				Options:  map[string]string{"sslmode": "require", "search_path": "engagement"},
			},
			contains: []string{"host=pg.internal", "port=6543", "password=pass", "sslmode=require", "search_path=engagement"},
		},
		{
			name:     "explicit dsn wins",
			cfg:      Config{DSN: "postgres://svc@pg/db"},
			expected: "postgres://svc@pg/db",
		},
		{
			name:    "missing credentials",
			cfg:     Config{Host: "pg.internal"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dsn, err := buildPostgresDSN(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.expected != "" {
				require.Equal(t, tc.expected, dsn)
			}
			for _, part := range tc.contains {
				require.Contains(t, dsn, part)
			}
		})
	}
}

func TestBuildMySQLDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected string
		contains []string
		wantErr  bool
	}{
		{
			name:     "defaults",
			cfg:      Config{User: "appms", Name: "engagement"},
			expected: "appms@tcp(127.0.0.1:3306)/engagement?charset=utf8mb4&loc=UTC&parseTime=True",
		},
		{
			name: "overrides",
			cfg: Config{
				User:     "svc",
				Password: "secret",
				Name:     "db",
				Host:     "mysql.internal",
				Port:     3307,
				Options:  map[string]string{"tls": "skip-verify", "loc": "Local"},
			},
			contains: []string{"svc:secret@tcp(mysql.internal:3307)/db?", "loc=Local", "tls=skip-verify"},
		},
		{
			name:    "missing credentials",
			cfg:     Config{Host: "localhost"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dsn, err := buildMySQLDSN(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.expected != "" {
				require.Equal(t, tc.expected, dsn)
			}
			for _, part := range tc.contains {
				require.Contains(t, dsn, part)
			}
		})
	}
}
