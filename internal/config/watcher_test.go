package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeProfiles(t *testing.T, path string, brightness int) {
	t.Helper()
	body := fmt.Sprintf("version = 1\n[profiles.cam]\ndevice = \"cam\"\n[profiles.cam.controls]\nbrightness = %d\n", brightness)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func brightness(p Profiles) int32 {
	return p.Profiles["cam"].Controls["brightness"]
}

func startWatcher(t *testing.T, path string, debounce time.Duration, opts ...WatcherOption[Profiles]) *Watcher[Profiles] {
	t.Helper()
	opts = append(opts, WithDebounce[Profiles](debounce))
	w := NewConfigWatcher(path, LoadProfiles, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	// let the watch goroutine settle
	time.Sleep(100 * time.Millisecond)
	return w
}

func TestConfigWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.toml")
	writeProfiles(t, path, 1)

	received := make(chan Profiles, 1)
	w := startWatcher(t, path, 50*time.Millisecond)
	w.OnReload(func(p Profiles) { received <- p })

	writeProfiles(t, path, 42)

	select {
	case p := <-received:
		if got := brightness(p); got != 42 {
			t.Errorf("brightness = %d, want 42", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestConfigWatcher_AtomicSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.toml")

	received := make(chan Profiles, 1)
	w := startWatcher(t, path, 50*time.Millisecond)
	w.OnReload(func(p Profiles) { received <- p })

	// The file doesn't exist yet; Save creates it via rename.
	store := NewProfileStore(path)
	if err := store.Set(Profile{Device: "cam", Controls: map[string]int32{"brightness": 7}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-received:
		if got := brightness(p); got != 7 {
			t.Errorf("brightness = %d, want 7", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after Save")
	}
}

func TestConfigWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.toml")
	writeProfiles(t, path, 1)

	var count atomic.Int32
	w := startWatcher(t, path, 50*time.Millisecond)
	w.OnReload(func(Profiles) { count.Add(1) })

	if err := os.WriteFile(filepath.Join(dir, "vcap.toml"), []byte("[server]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("reloads = %d after unrelated write, want 0", got)
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.toml")
	writeProfiles(t, path, 1)

	var count1, count2 atomic.Int32
	w := startWatcher(t, path, 50*time.Millisecond)
	w.OnReload(func(Profiles) { count1.Add(1) })
	unsub := w.OnReload(func(Profiles) { count2.Add(1) })

	writeProfiles(t, path, 10)
	time.Sleep(300 * time.Millisecond)
	unsub()
	writeProfiles(t, path, 20)
	time.Sleep(300 * time.Millisecond)

	if got := count1.Load(); got != 2 {
		t.Errorf("handler1 calls = %d, want 2", got)
	}
	if got := count2.Load(); got != 1 {
		t.Errorf("handler2 calls = %d, want 1", got)
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.toml")
	writeProfiles(t, path, 1)

	errs := make(chan error, 1)
	reloads := make(chan Profiles, 1)
	w := startWatcher(t, path, 50*time.Millisecond,
		WithErrorHandler[Profiles](func(err error) { errs <- err }))
	w.OnReload(func(p Profiles) { reloads <- p })

	if err := os.WriteFile(path, []byte("invalid toml [[["), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errs:
	case <-reloads:
		t.Fatal("reload handler called for invalid file")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.toml")
	writeProfiles(t, path, 0)

	var count, last atomic.Int32
	w := startWatcher(t, path, 200*time.Millisecond)
	w.OnReload(func(p Profiles) {
		count.Add(1)
		last.Store(brightness(p))
	})

	for i := 1; i <= 5; i++ {
		writeProfiles(t, path, i)
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("reloads = %d, want 1 debounced call", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("brightness = %d, want 5", got)
	}
}

func TestConfigWatcher_ConcurrentSubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.toml")
	writeProfiles(t, path, 0)

	w := startWatcher(t, path, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := w.OnReload(func(Profiles) {})
			time.Sleep(time.Millisecond)
			unsub()
		}()
	}
	for i := range 10 {
		writeProfiles(t, path, i)
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()
}

func TestConfigWatcher_Stop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.toml")
	writeProfiles(t, path, 1)

	var count atomic.Int32
	w := NewConfigWatcher(path, LoadProfiles, newTestLogger(), WithDebounce[Profiles](50*time.Millisecond))
	w.OnReload(func(Profiles) { count.Add(1) })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	writeProfiles(t, path, 99)
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("reloads after Stop = %d, want 0", got)
	}
}
