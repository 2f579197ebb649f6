package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Names of the files pkgseal reads and writes next to packaged content.
const (
	DefaultConfigurationFile = "encryption.config"
	DefaultManifestFile      = "pkgseal.toml"
	StagingDirName           = "__encrypted"
)

// StoreSettings locates the keyring-backed certificate stores.
type StoreSettings struct {
	// UserStoresPath holds file-backed CurrentUser stores.
	UserStoresPath string

	// MachineStoresPath holds LocalMachine stores.
	MachineStoresPath string

	// Password unlocks file-backed stores.
	Password string

	// FileOnly disables the OS keychain backends for CurrentUser stores.
	FileOnly bool
}

// Stores holds the active settings. Nil until ResolveStores first
// succeeds; tests assign it directly.
var Stores *StoreSettings

// ResolveStores returns Stores, loading it from the environment on first
// use. Commands that never touch a store never resolve it.
func ResolveStores() (*StoreSettings, error) {
	if Stores != nil {
		return Stores, nil
	}
	settings, err := LoadStoreSettings()
	if err != nil {
		return nil, err
	}
	Stores = settings
	return settings, nil
}

// LoadStoreSettings derives store locations from the environment.
// PKGSEAL_STORE_DIR moves every store under one directory and forces the
// file backend; PKGSEAL_STORE_PASSWORD sets the file backend password.
func LoadStoreSettings() (*StoreSettings, error) {
	settings := &StoreSettings{
		Password: os.Getenv("PKGSEAL_STORE_PASSWORD"),
	}
	if settings.Password == "" {
		settings.Password = "pkgseal"
	}

	if root := os.Getenv("PKGSEAL_STORE_DIR"); root != "" {
		settings.UserStoresPath = filepath.Join(root, "CurrentUser")
		settings.MachineStoresPath = filepath.Join(root, "LocalMachine")
		settings.FileOnly = true
		return settings, nil
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("error resolving certificate store settings: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	settings.UserStoresPath = filepath.Join(dataDir, "pkgseal", "stores")

	if runtime.GOOS == "windows" {
		programData := os.Getenv("ProgramData")
		if programData == "" {
			programData = `C:\ProgramData`
		}
		settings.MachineStoresPath = filepath.Join(programData, "pkgseal", "stores")
	} else {
		settings.MachineStoresPath = filepath.Join("/var", "lib", "pkgseal", "stores")
	}

	return settings, nil
}
