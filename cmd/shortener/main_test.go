package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/tinylink/internal/config"
	"github.com/atinyakov/tinylink/internal/storage"
)

func TestHostOf(t *testing.T) {
	tests := map[string]string{
		"https://sho.rt":            "sho.rt",
		"http://localhost:8080":     "localhost",
		"https://links.example.io/": "links.example.io",
		"sho.rt":                    "sho.rt",
	}
	for in, want := range tests {
		assert.Equal(t, want, hostOf(in), in)
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory by default", func(t *testing.T) {
		s, closer, err := openStore(ctx, &config.Options{}, zap.NewNop())
		require.NoError(t, err)
		defer closer.Close()

		_, ok := s.(*storage.MemoryStorage)
		assert.True(t, ok)
	})

	t.Run("sqlite when a path is set", func(t *testing.T) {
		opts := &config.Options{SQLitePath: filepath.Join(t.TempDir(), "links.db")}

		s, closer, err := openStore(ctx, opts, zap.NewNop())
		require.NoError(t, err)
		defer closer.Close()

		_, ok := s.(*storage.SQLiteStorage)
		assert.True(t, ok)
		assert.NoError(t, s.PingContext(ctx))
	})
}

func TestRandomSecret(t *testing.T) {
	a, b := randomSecret(), randomSecret()
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
