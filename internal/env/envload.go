package env

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// EnvDotEnvPath names an explicit .env file and disables the upward search.
const EnvDotEnvPath = "CAMNOTIFY_DOTENV"

var (
	loadOnce   sync.Once
	loadedPath string
	loadErr    error
)

// Ensure loads CAMNOTIFY_DOTENV, or else the nearest .env found walking up
// from the working directory. Variables already set in the process win over
// file values. Subsequent calls are no-ops.
func Ensure() error {
	// Tests opt in with GOTEST_LOAD_DOTENV=1 so a developer .env never leaks in.
	if runningUnderGoTest() && os.Getenv("GOTEST_LOAD_DOTENV") != "1" {
		return nil
	}
	loadOnce.Do(func() {
		path := strings.TrimSpace(os.Getenv(EnvDotEnvPath))
		if path == "" {
			found, err := findDotEnv()
			if err != nil {
				loadErr = err
				log.Debug().Err(err).Msg("camnotify: search .env failed")
				return
			}
			path = found
		}
		if path == "" {
			return
		}
		if err := godotenv.Load(path); err != nil {
			loadErr = err
			log.Warn().Err(err).Str("dotenv", path).Msg("camnotify: load .env failed")
			return
		}
		loadedPath = path
		log.Debug().Str("dotenv", path).Msg("camnotify: loaded .env")
	})
	return loadErr
}

// LoadedPath returns the .env path that was loaded, or "".
func LoadedPath() string {
	return loadedPath
}

func runningUnderGoTest() bool {
	if strings.HasSuffix(os.Args[0], ".test") {
		return true
	}
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "-test.") {
			return true
		}
	}
	return false
}

func findDotEnv() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, ".env")
		info, err := os.Stat(candidate)
		switch {
		case err == nil && !info.IsDir():
			return candidate, nil
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
