// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ClientEnvPrefix = "FEATURECTL"

	KeyAPIURL  = "api_url"
	KeyToken   = "token"
	KeyProject = "project"
	KeyTimeout = "timeout"
	KeyLogFile = "log_file"
)

var ErrMissingToken = errors.New("api token is not configured")

// ClientConfig configures featurectl. Values come from flags, FEATURECTL_*
// environment variables and $HOME/.config/featurectl/config.yaml, in that
// order of precedence.
type ClientConfig struct {
	APIURL  string
	Token   string
	Project string
	Timeout time.Duration
	LogFile string
}

// ClientConfigDir returns the directory holding config.yaml and the TUI log.
func ClientConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "featurectl")
	}
	return ".featurectl"
}

// SetClientDefaults registers defaults and the env binding on v.
func SetClientDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIURL, "http://localhost:8080")
	v.SetDefault(KeyTimeout, "15s")
	v.SetDefault(KeyLogFile, filepath.Join(ClientConfigDir(), "featurectl.log"))

	v.SetEnvPrefix(ClientEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// ReadClientFile loads path, or config.yaml from the default locations when
// path is empty. A missing default file is not an error.
func ReadClientFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ClientConfigDir())
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// LoadClient resolves ClientConfig from v.
func LoadClient(v *viper.Viper) (ClientConfig, error) {
	cfg := ClientConfig{
		APIURL:  strings.TrimRight(strings.TrimSpace(v.GetString(KeyAPIURL)), "/"),
		Token:   strings.TrimSpace(v.GetString(KeyToken)),
		Project: strings.TrimSpace(v.GetString(KeyProject)),
		Timeout: v.GetDuration(KeyTimeout),
		LogFile: strings.TrimSpace(v.GetString(KeyLogFile)),
	}

	if cfg.APIURL == "" {
		return ClientConfig{}, errors.New("api_url is empty")
	}
	if cfg.Token == "" {
		return ClientConfig{}, ErrMissingToken
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return cfg, nil
}
