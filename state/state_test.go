package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/grovetools/bnb/config"
	"github.com/grovetools/bnb/errors"
)

func storages(t *testing.T) map[string]Storage {
	t.Helper()
	redis := miniredis.RunT(t)
	rs := NewRedisStorage(RedisOptions{Addr: redis.Addr(), Prefix: "test:"})
	t.Cleanup(func() { rs.Close() })

	return map[string]Storage{
		"file":   NewFileStorage(filepath.Join(t.TempDir(), "nested", "session.yml")),
		"memory": NewMemoryStorage(),
		"redis":  rs,
	}
}

func TestStorageOperations(t *testing.T) {
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Get("token"); err != nil || ok {
				t.Fatalf("Get() on empty storage = ok %v, err %v", ok, err)
			}

			if err := s.Set("token", "T1"); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, ok, err := s.Get("token")
			if err != nil || !ok || got != "T1" {
				t.Errorf("Get() = %q, %v, %v; want T1, true, nil", got, ok, err)
			}

			if err := SetMany(s, map[string]string{"token": "T2", "user": `{"id":1}`}); err != nil {
				t.Fatalf("SetMany() error = %v", err)
			}
			if got, _, _ := s.Get("token"); got != "T2" {
				t.Errorf("Get(token) after SetMany = %q, want T2", got)
			}
			if got, _, _ := s.Get("user"); got != `{"id":1}` {
				t.Errorf("Get(user) after SetMany = %q", got)
			}

			if err := s.Delete("token", "user", "missing"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, ok, _ := s.Get("token"); ok {
				t.Error("token should be gone after Delete")
			}
			if _, ok, _ := s.Get("user"); ok {
				t.Error("user should be gone after Delete")
			}

			// Delete is idempotent
			if err := s.Delete("token"); err != nil {
				t.Errorf("second Delete() error = %v", err)
			}
		})
	}
}

func TestFileStoragePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yml")

	if err := NewFileStorage(path).Set("token", "persisted"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := NewFileStorage(path).Get("token")
	if err != nil || !ok || got != "persisted" {
		t.Errorf("Get() from new instance = %q, %v, %v", got, ok, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("session file mode = %o, want 600", perm)
	}
}

func TestFileStorageCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yml")
	if err := os.WriteFile(path, []byte("token: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewFileStorage(path).Get("token"); err == nil {
		t.Error("expected parse error for corrupt state file")
	}
}

func TestRedisStorageUsesPrefix(t *testing.T) {
	redis := miniredis.RunT(t)
	s := NewRedisStorage(RedisOptions{Addr: redis.Addr(), Prefix: "bnb:"})
	defer s.Close()

	if err := s.Set("token", "abc"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := redis.Get("bnb:token")
	if err != nil || got != "abc" {
		t.Errorf("raw redis value = %q, %v", got, err)
	}
}

func TestOpen(t *testing.T) {
	t.Setenv("BNB_HOME", t.TempDir())

	s, err := Open(config.StorageConfig{Backend: config.BackendFile})
	if err != nil {
		t.Fatalf("Open(file) error = %v", err)
	}
	fs, ok := s.(*FileStorage)
	if !ok {
		t.Fatalf("Open(file) returned %T", s)
	}
	if filepath.Base(fs.Path()) != "session.yml" {
		t.Errorf("unexpected default path %s", fs.Path())
	}

	dir := t.TempDir()
	t.Setenv("BNB_TEST_STATE", dir)
	s, err = Open(config.StorageConfig{Backend: config.BackendFile, Path: "$BNB_TEST_STATE/custom.yml"})
	if err != nil {
		t.Fatalf("Open(file, custom path) error = %v", err)
	}
	if got := s.(*FileStorage).Path(); got != filepath.Join(dir, "custom.yml") {
		t.Errorf("custom path = %s, want %s", got, filepath.Join(dir, "custom.yml"))
	}

	if _, err := Open(config.StorageConfig{Backend: config.BackendMemory}); err != nil {
		t.Errorf("Open(memory) error = %v", err)
	}
	if _, err := Open(config.StorageConfig{Backend: "etcd"}); err == nil {
		t.Error("Open(etcd) should fail")
	}
}

func TestOpenRedis(t *testing.T) {
	server := miniredis.RunT(t)
	s, err := Open(config.StorageConfig{
		Backend: config.BackendRedis,
		Redis:   config.RedisConfig{Addr: server.Addr()},
	})
	if err != nil {
		t.Fatalf("Open(redis) error = %v", err)
	}
	defer s.(Closer).Close()
	if err := s.Set("token", "abc"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, _ := server.Get(config.DefaultRedisPrefix + "token"); got != "abc" {
		t.Errorf("raw redis value = %q", got)
	}

	down, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	addr := down.Addr()
	down.Close()
	_, err = Open(config.StorageConfig{
		Backend: config.BackendRedis,
		Redis:   config.RedisConfig{Addr: addr},
	})
	if errors.KindOf(err) != errors.KindStorage {
		t.Errorf("Open(unreachable redis) kind = %v, want %v", errors.KindOf(err), errors.KindStorage)
	}
}
