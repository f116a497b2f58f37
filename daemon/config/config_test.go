package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/moby/isoserve/opts"
	"github.com/spf13/pflag"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/fs"
)

func TestDaemonConfigurationNotFound(t *testing.T) {
	_, err := MergeDaemonConfigurations(&Config{}, nil, "/tmp/foo-bar-baz-isoserve")
	assert.Check(t, os.IsNotExist(err), "got: %[1]T: %[1]v", err)
}

func TestDaemonBrokenConfiguration(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "daemon.json")
	assert.NilError(t, os.WriteFile(configFile, []byte(`{"debug": tru}`), 0o644))

	_, err := MergeDaemonConfigurations(&Config{}, nil, configFile)
	assert.ErrorContains(t, err, `invalid character`)
}

// TestDaemonConfigurationWithBOM ensures that the UTF-8 byte order mark is ignored when reading the configuration file.
func TestDaemonConfigurationWithBOM(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "daemon.json")
	assert.NilError(t, os.WriteFile(configFile, []byte("\xef\xbb\xbf{\"debug\": true}"), 0o644))

	cfg, err := MergeDaemonConfigurations(&Config{}, nil, configFile)
	assert.NilError(t, err)
	assert.Check(t, cfg.Debug)
}

func TestDaemonConfigurationEmptyFile(t *testing.T) {
	tempFile := fs.NewFile(t, "config", fs.WithContent(""))
	defer tempFile.Remove()

	cfg, err := MergeDaemonConfigurations(New(), nil, tempFile.Path())
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(cfg, New()))
}

func TestDaemonConfigurationUnknownKeys(t *testing.T) {
	tempFile := fs.NewFile(t, "config", fs.WithContent(`{"root": "site", "gzip": true, "cors": "*"}`))
	defer tempFile.Remove()

	_, err := MergeDaemonConfigurations(New(), nil, tempFile.Path())
	assert.Check(t, is.Error(err, "the following directives don't match any configuration option: cors, gzip"))
}

func TestFindConfigurationConflicts(t *testing.T) {
	config := map[string]interface{}{"root": "site"}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)

	flags.String("root", "", "")
	assert.Check(t, flags.Set("root", "www"))
	assert.Check(t, is.Error(findConfigurationConflicts(config, flags), "the following directives are specified both as a flag and in the configuration file: root: (from flag: www, from file: site)"))
}

func TestFindConfigurationConflictsWithNamedOptions(t *testing.T) {
	config := map[string]interface{}{"hosts": []string{"qwer"}}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)

	var hosts []string
	flags.VarP(opts.NewNamedListOptsRef("hosts", &hosts, opts.ValidateHost), "host", "H", "Address to listen on")
	assert.Check(t, flags.Set("host", "tcp://127.0.0.1:4444"))
	assert.Check(t, flags.Set("host", "unix:///var/run/isoserve.sock"))
	assert.Check(t, is.ErrorContains(findConfigurationConflicts(config, flags), "hosts"))
}

func TestFindConfigurationConflictsUnchangedFlags(t *testing.T) {
	config := map[string]interface{}{"root": "site"}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("root", DefaultRoot, "")

	assert.Check(t, findConfigurationConflicts(config, flags))
}

func TestDaemonConfigurationMergeConflicts(t *testing.T) {
	tempFile := fs.NewFile(t, "config", fs.WithContent(`{"debug": true}`))
	defer tempFile.Remove()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("debug", false, "")
	assert.Check(t, flags.Set("debug", "false"))

	_, err := MergeDaemonConfigurations(&Config{}, flags, tempFile.Path())
	assert.Check(t, is.ErrorContains(err, "debug: (from flag: false, from file: true)"))
}

// TestDaemonConfigurationFalseOverridesDefault verifies that a boolean set to
// false in the file wins over a flag that defaults to true but was not set.
func TestDaemonConfigurationFalseOverridesDefault(t *testing.T) {
	tempFile := fs.NewFile(t, "config", fs.WithContent(`{"etag": false, "redirect": false}`))
	defer tempFile.Remove()

	cfg := New()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.BoolVar(&cfg.ETag, "etag", cfg.ETag, "")
	flags.BoolVar(&cfg.Redirect, "redirect", cfg.Redirect, "")
	flags.BoolVar(&cfg.LastModified, "last-modified", cfg.LastModified, "")

	merged, err := MergeDaemonConfigurations(cfg, flags, tempFile.Path())
	assert.NilError(t, err)
	assert.Check(t, !merged.ETag)
	assert.Check(t, !merged.Redirect)
	assert.Check(t, merged.LastModified)
}

func TestDaemonConfigurationMergeFromFile(t *testing.T) {
	tempFile := fs.NewFile(t, "config", fs.WithContent(`{
		"root": "/srv/www",
		"hosts": ["tcp://127.0.0.1:8080"],
		"index": ["index.htm"],
		"max-age": 3600
	}`))
	defer tempFile.Remove()

	cfg, err := MergeDaemonConfigurations(New(), nil, tempFile.Path())
	assert.NilError(t, err)
	assert.Check(t, is.Equal(cfg.Root, "/srv/www"))
	assert.Check(t, is.DeepEqual(cfg.Hosts, []string{"tcp://127.0.0.1:8080"}))
	assert.Check(t, is.DeepEqual(cfg.Index, []string{"index.htm"}))
	assert.Check(t, is.Equal(cfg.MaxAge, 3600))
	// defaults from the flags configuration fill the rest
	assert.Check(t, is.Equal(cfg.Dotfiles, DotfilesIgnore))
	assert.Check(t, is.Equal(cfg.ShutdownTimeout, DefaultShutdownTimeout))
}

func TestDaemonConfigurationTOML(t *testing.T) {
	dir := fs.NewDir(t, "config", fs.WithFile("daemon.toml", `
root = "site"
dotfiles = "deny"
index = ["index.htm", "default.html"]
max-age = 60
`))
	defer dir.Remove()

	cfg, err := MergeDaemonConfigurations(New(), nil, dir.Join("daemon.toml"))
	assert.NilError(t, err)
	assert.Check(t, is.Equal(cfg.Root, "site"))
	assert.Check(t, is.Equal(cfg.Dotfiles, DotfilesDeny))
	assert.Check(t, is.DeepEqual(cfg.Index, []string{"index.htm", "default.html"}))
	assert.Check(t, is.Equal(cfg.MaxAge, 60))
}

func TestDaemonConfigurationYAML(t *testing.T) {
	dir := fs.NewDir(t, "config", fs.WithFile("daemon.yaml", `
root: site
hosts:
  - unix:///run/isoserve.sock
log-format: json
`))
	defer dir.Remove()

	cfg, err := MergeDaemonConfigurations(New(), nil, dir.Join("daemon.yaml"))
	assert.NilError(t, err)
	assert.Check(t, is.Equal(cfg.Root, "site"))
	assert.Check(t, is.DeepEqual(cfg.Hosts, []string{"unix:///run/isoserve.sock"}))
	assert.Check(t, is.Equal(cfg.LogFormat, "json"))
}

func TestValidateConfigurationErrors(t *testing.T) {
	testCases := []struct {
		name        string
		config      *Config
		expectedErr string
	}{
		{
			name:        "invalid log-level",
			config:      &Config{LogLevel: "foobar"},
			expectedErr: "invalid logging level: foobar",
		},
		{
			name:        "invalid log-format",
			config:      &Config{LogFormat: "xml"},
			expectedErr: "invalid log format: xml",
		},
		{
			name:        "invalid dotfiles",
			config:      &Config{Dotfiles: "hide"},
			expectedErr: "invalid dotfiles option: hide (must be ignore, deny or allow)",
		},
		{
			name:        "index with path separator",
			config:      &Config{Index: []string{"sub/index.html"}},
			expectedErr: "invalid index file name: sub/index.html",
		},
		{
			name:        "index naming the parent directory",
			config:      &Config{Index: []string{"index.html", ".."}},
			expectedErr: "invalid index file name: ..",
		},
		{
			name:        "negative max-age",
			config:      &Config{MaxAge: -1},
			expectedErr: "invalid max-age: -1",
		},
		{
			name:        "negative shutdown-timeout",
			config:      &Config{ShutdownTimeout: -10},
			expectedErr: "invalid shutdown-timeout: -10",
		},
		{
			name:        "tls without key",
			config:      &Config{TLS: true, TLSOptions: TLSOptions{CertFile: "/tmp/cert.pem"}},
			expectedErr: "tls requires both tlscert and tlskey to be set",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.config)
			assert.Check(t, is.Error(err, tc.expectedErr))
		})
	}
}

func TestValidateConfiguration(t *testing.T) {
	assert.Check(t, Validate(New()))
	assert.Check(t, Validate(&Config{Dotfiles: DotfilesAllow, LogLevel: "debug", LogFormat: "json"}))
}
