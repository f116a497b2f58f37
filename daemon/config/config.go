// Package config defines the configuration of the isoserved daemon and
// loads it from flags and an optional configuration file.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"dario.cat/mergo"
	"github.com/containerd/log"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultRoot is the directory served when no root is configured. It is
	// resolved against the working directory at startup.
	DefaultRoot = "public"
	// DefaultIndex is the file served for a request that names a directory.
	DefaultIndex = "index.html"
	// DefaultShutdownTimeout is the default number of seconds to wait for
	// in-flight requests on shutdown.
	DefaultShutdownTimeout = 15
	// DefaultDotfiles is the default handling of path segments starting with ".".
	DefaultDotfiles = DotfilesIgnore
)

// Handling of dotfiles.
const (
	// DotfilesIgnore pretends dotfiles don't exist (404).
	DotfilesIgnore = "ignore"
	// DotfilesDeny rejects requests for dotfiles (403).
	DotfilesDeny = "deny"
	// DotfilesAllow serves dotfiles like any other file.
	DotfilesAllow = "allow"
)

// TLSOptions defines the certificate and key used by TCP listeners.
type TLSOptions struct {
	CertFile string `json:"tlscert,omitempty"`
	KeyFile  string `json:"tlskey,omitempty"`
}

// Config defines the configuration of the static file daemon.
// It includes json tags to deserialize configuration from a file
// using the same names that the flags in the command line uses.
type Config struct {
	Hosts []string `json:"hosts,omitempty"`

	// Root is the directory below which all servable files reside.
	Root     string   `json:"root,omitempty"`
	Index    []string `json:"index,omitempty"`
	Dotfiles string   `json:"dotfiles,omitempty"`

	Redirect     bool `json:"redirect,omitempty"`
	ETag         bool `json:"etag,omitempty"`
	LastModified bool `json:"last-modified,omitempty"`
	// MaxAge is the max-age, in seconds, sent in the Cache-Control header.
	MaxAge int `json:"max-age,omitempty"`

	Debug     bool   `json:"debug,omitempty"`
	LogLevel  string `json:"log-level,omitempty"`
	LogFormat string `json:"log-format,omitempty"`

	Pidfile         string `json:"pidfile,omitempty"`
	ShutdownTimeout int    `json:"shutdown-timeout,omitempty"`
	MetricsAddress  string `json:"metrics-addr,omitempty"`

	TLS bool `json:"tls,omitempty"`
	TLSOptions
}

// New returns a new fully initialized Config struct with default values set.
func New() *Config {
	return &Config{
		Root:            DefaultRoot,
		Dotfiles:        DefaultDotfiles,
		Redirect:        true,
		ETag:            true,
		LastModified:    true,
		LogLevel:        "info",
		LogFormat:       string(log.TextFormat),
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// boolValue is an interface that boolean value flags implement
// to tell the command line how to make -name equivalent to -name=true.
type boolValue interface {
	IsBoolFlag() bool
}

// MergeDaemonConfigurations reads a configuration file,
// loads the file configuration in an isolated structure,
// and merges the configuration provided from flags on top
// if there are no conflicts.
func MergeDaemonConfigurations(flagsConfig *Config, flags *pflag.FlagSet, configFile string) (*Config, error) {
	fileConfig, err := getConflictFreeConfiguration(configFile, flags)
	if err != nil {
		return nil, err
	}

	// merge flags configuration on top of the file configuration
	if err := mergo.Merge(fileConfig, flagsConfig); err != nil {
		return nil, err
	}

	if err := Validate(fileConfig); err != nil {
		return nil, errors.Wrap(err, "merged configuration validation from file and command line flags failed")
	}

	return fileConfig, nil
}

// getConflictFreeConfiguration loads the configuration from a file.
// It compares that configuration with the one provided by the flags,
// and returns an error if there are conflicts.
func getConflictFreeConfiguration(configFile string, flags *pflag.FlagSet) (*Config, error) {
	b, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}

	// Decode the contents of the file, ignoring the UTF-8 BOM, if present.
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))

	configMap, err := decodeConfigFile(configFile, b)
	if err != nil {
		return nil, err
	}
	if len(configMap) == 0 {
		return &Config{}, nil
	}

	if err := checkUnknownKeys(configMap); err != nil {
		return nil, err
	}

	if flags != nil {
		if err := findConfigurationConflicts(configMap, flags); err != nil {
			return nil, err
		}

		// Override flag values to make sure the values set in the config file with nullable values, like `false`,
		// are not overridden by default truthy values from the flags that were not explicitly set.
		for key, value := range configMap {
			f := flags.Lookup(key)
			if f == nil {
				continue
			}
			if _, ok := f.Value.(boolValue); ok {
				if err := f.Value.Set(fmt.Sprintf("%v", value)); err != nil {
					return nil, errors.Wrapf(err, "invalid value for %s", key)
				}
			}
		}
	}

	// Values are re-encoded as JSON so that a single set of struct tags
	// describes the configuration, whatever the format of the file.
	normalized, err := json.Marshal(configMap)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := json.Unmarshal(normalized, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// decodeConfigFile decodes the file into a generic map, choosing the format
// from the file extension. Anything that is not TOML or YAML is read as JSON.
func decodeConfigFile(configFile string, b []byte) (map[string]interface{}, error) {
	var configMap map[string]interface{}
	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".toml":
		tree, err := toml.LoadBytes(b)
		if err != nil {
			return nil, err
		}
		configMap = tree.ToMap()
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &configMap); err != nil {
			return nil, err
		}
	default:
		if len(bytes.TrimSpace(b)) == 0 {
			return nil, nil
		}
		if err := json.Unmarshal(b, &configMap); err != nil {
			return nil, err
		}
	}
	return configMap, nil
}

// checkUnknownKeys returns an error listing the keys in the configuration
// file that don't match any option.
func checkUnknownKeys(config map[string]interface{}) error {
	known := configurationKeys(reflect.TypeOf(Config{}))
	var unknown []string
	for k := range config {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.Errorf("the following directives don't match any configuration option: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// configurationKeys collects the json names of the fields in t, descending
// into embedded structs.
func configurationKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			for k := range configurationKeys(field.Type) {
				keys[k] = true
			}
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = true
		}
	}
	return keys
}

// findConfigurationConflicts iterates over the provided flags searching for
// duplicated configurations and unknown keys. It returns an error with all the conflicts if
// it finds any.
func findConfigurationConflicts(config map[string]interface{}, flags *pflag.FlagSet) error {
	var conflicts []string
	printConflict := func(name string, flagValue, fileValue interface{}) string {
		return fmt.Sprintf("%s: (from flag: %v, from file: %v)", name, flagValue, fileValue)
	}

	duplicatedConflicts := func(f *pflag.Flag) {
		// search option name in the json configuration payload if the value is a named option
		if namedOption, ok := f.Value.(namedOption); ok {
			if optsValue, ok := config[namedOption.Name()]; ok {
				conflicts = append(conflicts, printConflict(namedOption.Name(), f.Value.String(), optsValue))
			}
		} else {
			// search flag name in the json configuration payload
			for _, name := range []string{f.Name, f.Shorthand} {
				if value, ok := config[name]; ok {
					conflicts = append(conflicts, printConflict(name, f.Value.String(), value))
					break
				}
			}
		}
	}

	flags.Visit(duplicatedConflicts)

	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return errors.Errorf("the following directives are specified both as a flag and in the configuration file: %s", strings.Join(conflicts, ", "))
	}
	return nil
}

// namedOption is implemented by flag values whose configuration key differs
// from the flag name, such as "hosts" for "--host".
type namedOption interface {
	Name() string
}

// Validate validates some specific configs.
// such as config.Dotfiles, config.LogLevel and config.MaxAge.
func Validate(config *Config) error {
	if config.LogLevel != "" {
		if _, err := logrus.ParseLevel(config.LogLevel); err != nil {
			return errors.Errorf("invalid logging level: %s", config.LogLevel)
		}
	}
	switch log.OutputFormat(config.LogFormat) {
	case "", log.TextFormat, log.JSONFormat:
	default:
		return errors.Errorf("invalid log format: %s", config.LogFormat)
	}

	switch config.Dotfiles {
	case "", DotfilesIgnore, DotfilesDeny, DotfilesAllow:
	default:
		return errors.Errorf("invalid dotfiles option: %s (must be %s, %s or %s)", config.Dotfiles, DotfilesIgnore, DotfilesDeny, DotfilesAllow)
	}

	for _, name := range config.Index {
		if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return errors.Errorf("invalid index file name: %s", name)
		}
	}

	if config.MaxAge < 0 {
		return errors.Errorf("invalid max-age: %d", config.MaxAge)
	}
	if config.ShutdownTimeout < 0 {
		return errors.Errorf("invalid shutdown-timeout: %d", config.ShutdownTimeout)
	}

	if config.TLS && (config.CertFile == "" || config.KeyFile == "") {
		return errors.New("tls requires both tlscert and tlskey to be set")
	}
	return nil
}
