package application

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	// AppName is the application name used for directories and identification
	AppName = "repoload"

	// EnvPrefix is the prefix for environment variable overrides (REPOLOAD_*)
	EnvPrefix = "REPOLOAD"

	// ServiceName is the name registered with the OS service manager
	ServiceName = "RepoloadServer"
)

var (
	once   sync.Once
	appDir string
	errDir error
)

// GetApplicationDirectory returns the repoload configuration directory path.
// Linux: ~/.config/repoload (via os.UserConfigDir)
// Windows: C:\Users\{username}\AppData\Local\repoload (via os.UserCacheDir)
func GetApplicationDirectory() (string, error) {
	once.Do(lazyLoad)

	if errDir != nil {
		return "", errDir
	}

	return appDir, nil
}

// DefaultDatabasePath returns the catalog file for the given driver inside
// the application directory.
func DefaultDatabasePath(driver string) string {
	dir, err := GetApplicationDirectory()
	if err != nil {
		dir = "."
	}

	if driver == "bolt" {
		return filepath.Join(dir, AppName+".bolt")
	}

	return filepath.Join(dir, AppName+".db")
}

func lazyLoad() {
	var (
		baseDir string
		err     error
	)

	switch runtime.GOOS {
	case "windows":
		baseDir, err = os.UserCacheDir()
	default:
		baseDir, err = os.UserConfigDir()
	}

	if err != nil {
		errDir = fmt.Errorf("failed to get config directory: %w", err)
		return
	}

	appDir = filepath.Join(baseDir, AppName)
}
