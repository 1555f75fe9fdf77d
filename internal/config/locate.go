package config

import (
	"bufio"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	// EnvConfigDir names an existing base directory holding shared configuration.
	EnvConfigDir = "NODC_CONFIG"

	// OverrideFileName is read from the working directory; its first line names
	// a base directory that takes precedence over EnvConfigDir.
	OverrideFileName = "config_directory.txt"

	// Subdirectory is appended to the located base directory.
	Subdirectory = "sharkweb_shapefiles"

	// DefaultConfigFileName is the dataset configuration document.
	DefaultConfigFileName = "shape_file_config.yaml"

	// LookupDatabaseName is the default SQLite result store file name.
	LookupDatabaseName = "lookup_database.db"
)

// ConfigFileNames lists the configuration documents that may be requested by name.
var ConfigFileNames = []string{DefaultConfigFileName}

// homeFallbacks are tried, in order, below the user's home directory.
var homeFallbacks = []string{"NODC_CONFIG", ".NODC_CONFIG", "nodc_config", ".nodc_config"}

var (
	// ErrConfigDirectoryNotFound means no configuration directory could be located.
	ErrConfigDirectoryNotFound = eris.New("config directory not found")

	// ErrConfigFileNotFound means a configuration file name is unknown or missing on disk.
	ErrConfigFileNotFound = eris.New("config file not found")
)

// LocateOptions controls where LocateDirectory searches. Zero values fall back
// to the process working directory, environment and home directory.
type LocateOptions struct {
	Explicit string
	WorkDir  string
	HomeDir  string
	Getenv   func(string) string
}

// LocateDirectory returns the shapefile configuration directory. An explicit
// directory is used as-is; otherwise the base directory is taken from the
// override file, then EnvConfigDir, then the home fallbacks, and Subdirectory
// is appended to the first one that exists.
func LocateDirectory(opts LocateOptions) (string, error) {
	if opts.Explicit != "" {
		if !isDir(opts.Explicit) {
			return "", eris.Wrapf(ErrConfigDirectoryNotFound, "config: explicit directory %s", opts.Explicit)
		}
		return opts.Explicit, nil
	}

	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			opts.WorkDir = wd
		}
	}
	if opts.HomeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			opts.HomeDir = home
		}
	}

	log := zap.L().With(zap.String("component", "config.locate"))

	if base := readOverrideFile(opts.WorkDir); base != "" {
		log.Debug("config directory from override file", zap.String("base", base))
		return filepath.Join(base, Subdirectory), nil
	}

	if base := opts.Getenv(EnvConfigDir); base != "" && isDir(base) {
		log.Debug("config directory from environment", zap.String("base", base))
		return filepath.Join(base, Subdirectory), nil
	}

	if opts.HomeDir != "" {
		for _, name := range homeFallbacks {
			base := filepath.Join(opts.HomeDir, name)
			if isDir(base) {
				log.Debug("config directory from home fallback", zap.String("base", base))
				return filepath.Join(base, Subdirectory), nil
			}
		}
	}

	return "", eris.Wrapf(ErrConfigDirectoryNotFound,
		"config: environment variable %s is not set and no other config directory was found", EnvConfigDir)
}

// ConfigFilePath returns the path of a recognised configuration file inside dir.
func ConfigFilePath(dir, name string) (string, error) {
	if !slices.Contains(ConfigFileNames, name) {
		return "", eris.Wrapf(ErrConfigFileNotFound, "config: no config file with name %q exists", name)
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", eris.Wrapf(ErrConfigFileNotFound, "config: could not find config file %s", path)
	}
	return path, nil
}

// readOverrideFile returns the directory named on the first line of
// OverrideFileName in workDir, or "" if the file is missing, empty or names a
// directory that does not exist. Relative names resolve against workDir.
func readOverrideFile(workDir string) string {
	f, err := os.Open(filepath.Join(workDir, OverrideFileName))
	if err != nil {
		return ""
	}
	defer f.Close() //nolint:errcheck

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return ""
	}
	base := strings.TrimSpace(sc.Text())
	if base == "" {
		return ""
	}
	if !filepath.IsAbs(base) {
		base = filepath.Join(workDir, base)
	}
	if !isDir(base) {
		return ""
	}
	return base
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
