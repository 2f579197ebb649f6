package configs

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestLoadStoreSettingsFromEnvironment(t *testing.T) {
	root := t.TempDir()
	t.Setenv("PKGSEAL_STORE_DIR", root)
	t.Setenv("PKGSEAL_STORE_PASSWORD", "hunter2")

	settings, err := LoadStoreSettings()
	if err != nil {
		t.Fatalf("LoadStoreSettings failed: %v", err)
	}

	if settings.UserStoresPath != filepath.Join(root, "CurrentUser") {
		t.Errorf("Unexpected user stores path %s", settings.UserStoresPath)
	}
	if settings.MachineStoresPath != filepath.Join(root, "LocalMachine") {
		t.Errorf("Unexpected machine stores path %s", settings.MachineStoresPath)
	}
	if !settings.FileOnly {
		t.Error("Expected an explicit store directory to force the file backend")
	}
	if settings.Password != "hunter2" {
		t.Errorf("Expected password from environment, got %q", settings.Password)
	}
}

func TestLoadStoreSettingsDefaults(t *testing.T) {
	t.Setenv("PKGSEAL_STORE_DIR", "")
	t.Setenv("PKGSEAL_STORE_PASSWORD", "")
	t.Setenv("XDG_DATA_HOME", filepath.Join(t.TempDir(), "data"))

	settings, err := LoadStoreSettings()
	if err != nil {
		t.Fatalf("LoadStoreSettings failed: %v", err)
	}

	if settings.FileOnly {
		t.Error("Expected OS backends to be allowed by default")
	}
	if settings.Password != "pkgseal" {
		t.Errorf("Expected default password, got %q", settings.Password)
	}
	if filepath.Base(settings.UserStoresPath) != "stores" {
		t.Errorf("Unexpected user stores path %s", settings.UserStoresPath)
	}
	if settings.MachineStoresPath == "" {
		t.Error("Expected a machine stores path")
	}
}

func TestResolveStoresWithoutHome(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("home directory resolution differs on Windows")
	}
	original := Stores
	Stores = nil
	defer func() {
		Stores = original
	}()
	t.Setenv("HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("PKGSEAL_STORE_DIR", "")

	if _, err := ResolveStores(); err == nil {
		t.Fatal("Expected an error without a home directory")
	}
	if Stores != nil {
		t.Error("Expected a failed resolution to leave Stores unset")
	}

	data := filepath.Join(t.TempDir(), "data")
	t.Setenv("XDG_DATA_HOME", data)
	settings, err := ResolveStores()
	if err != nil {
		t.Fatalf("ResolveStores failed: %v", err)
	}
	if settings.UserStoresPath != filepath.Join(data, "pkgseal", "stores") {
		t.Errorf("Unexpected user stores path %s", settings.UserStoresPath)
	}
	if Stores != settings {
		t.Error("Expected resolved settings to be cached")
	}
}
