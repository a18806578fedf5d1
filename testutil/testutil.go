// Package testutil holds helpers shared by package tests that need a running
// marketplace backend.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/bnb/internal/fakeapi"
)

// StartFakeAPI starts a seeded in-memory backend and returns it with its
// base URL. The server stops when the test ends.
func StartFakeAPI(t *testing.T, opts ...fakeapi.Option) (*fakeapi.Server, string) {
	t.Helper()

	fake := fakeapi.New(opts...)
	require.NoError(t, fake.Seed())
	ts := httptest.NewServer(fake.Handler())
	t.Cleanup(ts.Close)
	return fake, ts.URL
}

// WriteConfig writes a bnb.yml into dir that points at baseURL and keeps
// the session in dir/session.yml. It returns the config path.
func WriteConfig(t *testing.T, dir, baseURL string) string {
	t.Helper()

	doc := map[string]interface{}{
		"api": map[string]interface{}{
			"base_url": baseURL,
			"timeout":  "5s",
		},
		"storage": map[string]interface{}{
			"backend": "file",
			"path":    filepath.Join(dir, "session.yml"),
		},
	}
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(dir, "bnb.yml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// RandomString returns a random hex string of the given length.
func RandomString(length int) string {
	b := make([]byte, (length+1)/2)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)[:length]
}

// RandomEmail returns an address no seeded account uses.
func RandomEmail() string {
	return "user-" + RandomString(8) + "@bnb.test"
}
