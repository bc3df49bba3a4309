package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tansive/unifictl/internal/unifi"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.yaml"

// ConfigFormatVersion is the current version of the configuration file format
const ConfigFormatVersion = "0.1.0"

// Environment variables that override the config file.
const (
	EnvControllerURL = "UNIFI_URL"
	EnvUsername      = "UNIFI_USERNAME"
	EnvPassword      = "UNIFI_PASSWORD"
	EnvSite          = "UNIFI_SITE"
)

// Config represents the configuration for the unifictl CLI
// It contains controller connection details and credentials
type Config struct {
	// Version of the configuration file format
	Version string `yaml:"version" json:"version" toml:"version"`
	// ControllerURL is the base address of the controller, e.g. https://192.168.1.2:8443
	ControllerURL string `yaml:"controller_url" json:"controller_url" toml:"controller_url" validate:"required,url"`
	// Username used to log in
	Username string `yaml:"username" json:"username" toml:"username"`
	// Password used to log in (stored for convenience)
	Password string `yaml:"password" json:"password" toml:"password"`
	// Site is substituted for {site} in request paths
	Site string `yaml:"site" json:"site" toml:"site"`
	// Insecure skips certificate validation
	Insecure bool `yaml:"insecure" json:"insecure" toml:"insecure"`
	// Timeout bounds every exchange, e.g. "30s"
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty" toml:"timeout,omitempty"`
	// Debug enables debug logging of the session engine
	Debug bool `yaml:"debug,omitempty" json:"debug,omitempty" toml:"debug,omitempty"`
	// DebugNet enables logging of every exchange
	DebugNet bool `yaml:"debug_net,omitempty" json:"debug_net,omitempty" toml:"debug_net,omitempty"`
}

var config *Config

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// GetDefaultConfigPath returns the default path for the config file
// It uses the OS-specific config directory (e.g., ~/.config/unifictl on Linux)
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "unifictl", DefaultConfigFile), nil
}

// LoadConfig loads the configuration from the specified file and applies
// environment overrides. A .env file in the working directory is read first.
// A missing file is not an error when UNIFI_URL is set.
func LoadConfig(file string) error {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get default config path: %w", err)
		}
	}
	_ = godotenv.Load() // no error if .env doesn't exist

	c, err := readConfig(file)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || os.Getenv(EnvControllerURL) == "" {
			return err
		}
		c = &Config{Version: ConfigFormatVersion, Insecure: true}
	}
	c.applyEnv()
	c.ControllerURL = MorphServer(c.ControllerURL)

	if err := c.ValidateConfig(); err != nil {
		return err
	}
	config = c
	return nil
}

func readConfig(file string) (*Config, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	var c Config
	switch strings.ToLower(filepath.Ext(file)) {
	case ".toml":
		if _, err := toml.Decode(string(content), &c); err != nil {
			return nil, fmt.Errorf("unable to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(content, &c); err != nil {
			return nil, fmt.Errorf("unable to parse config file: %w", err)
		}
	}
	return &c, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv(EnvControllerURL); v != "" {
		cfg.ControllerURL = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv(EnvSite); v != "" {
		cfg.Site = v
	}
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	return config
}

// WriteConfig writes the configuration to the specified file, as TOML when the
// file name ends in .toml and YAML otherwise.
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	err := os.MkdirAll(filepath.Dir(file), 0o700)
	if err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	var content []byte
	if strings.ToLower(filepath.Ext(file)) == ".toml" {
		var b strings.Builder
		if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
			return fmt.Errorf("unable to generate configuration: %w", err)
		}
		content = []byte(b.String())
	} else {
		content, err = yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("unable to generate configuration: %w", err)
		}
	}

	err = os.WriteFile(file, content, os.FileMode(0600))
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}

	return nil
}

// ValidateConfig validates the configuration
func (cfg *Config) ValidateConfig() error {
	if err := configValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "ControllerURL" {
			return errors.New("controller_url is required and must be a URL")
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := cfg.timeout(); err != nil {
		return err
	}
	return nil
}

func (cfg *Config) timeout() (time.Duration, error) {
	if cfg.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(cfg.Timeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid timeout %q", cfg.Timeout)
	}
	return d, nil
}

// SiteName returns the configured site or the controller's default site.
func (cfg *Config) SiteName() string {
	if cfg.Site == "" {
		return unifi.DefaultSite
	}
	return cfg.Site
}

// ClientOptions converts the configuration into options for unifi.New.
func (cfg *Config) ClientOptions() unifi.Options {
	opts := unifi.DefaultOptions()
	opts.BaseURL = cfg.ControllerURL
	if cfg.Username != "" {
		opts.Username = cfg.Username
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.Insecure = cfg.Insecure
	opts.Timeout, _ = cfg.timeout()
	opts.Debug = cfg.Debug
	opts.DebugNet = cfg.DebugNet
	return opts
}

// Print prints the configuration in a human-readable format, password masked
func (cfg *Config) Print(w io.Writer) {
	fmt.Fprintf(w, "Controller: %s\n", cfg.ControllerURL)
	fmt.Fprintf(w, "Username: %s\n", cfg.Username)
	fmt.Fprintf(w, "Password: %s\n", maskSecret(cfg.Password))
	fmt.Fprintf(w, "Site: %s\n", cfg.SiteName())
	fmt.Fprintf(w, "Insecure: %t\n", cfg.Insecure)
	if cfg.Timeout != "" {
		fmt.Fprintf(w, "Timeout: %s\n", cfg.Timeout)
	}
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// MorphServer ensures the controller URL is properly formatted
// Adds https:// prefix if missing and removes trailing slashes
func MorphServer(server string) string {
	if server == "" {
		return server
	}

	server = strings.TrimRight(server, "/")

	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "https://" + server
	}

	return server
}

// newConfigCmd creates the config command and its subcommands
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  `Manage CLI configuration settings like controller address and credentials.`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmd.AddCommand(newConfigCreateCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigCreateCmd() *cobra.Command {
	cfg := &Config{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Write a new configuration file",
		Long: `Write a new configuration file. The file is created with owner-only permissions
because it may hold the controller password. A path ending in .toml is written as TOML.

Example:
  unifictl config create --url 192.168.1.2:8443 --username admin --password secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath()
			if err != nil {
				return err
			}
			cfg.Version = ConfigFormatVersion
			cfg.ControllerURL = MorphServer(cfg.ControllerURL)
			if err := cfg.ValidateConfig(); err != nil {
				return err
			}
			if err := cfg.WriteConfig(path); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				printJSON(out, map[string]string{
					"controller_url": cfg.ControllerURL,
					"config_file":    path,
				})
			} else {
				fmt.Fprintf(out, "Controller configured: %s\n", cfg.ControllerURL)
				fmt.Fprintf(out, "Config file: %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.ControllerURL, "url", "", "Controller address and port (e.g., 192.168.1.2:8443)")
	cmd.Flags().StringVar(&cfg.Username, "username", unifi.DefaultUsername, "Login username")
	cmd.Flags().StringVar(&cfg.Password, "password", "", "Login password")
	cmd.Flags().StringVar(&cfg.Site, "site", unifi.DefaultSite, "Site name")
	cmd.Flags().BoolVar(&cfg.Insecure, "insecure", true, "Skip certificate validation")
	cmd.Flags().StringVar(&cfg.Timeout, "timeout", "", "Per request timeout (e.g., 30s)")
	cmd.MarkFlagRequired("url")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath()
			if err != nil {
				return err
			}
			if err := LoadConfig(path); err != nil {
				return err
			}
			cfg := *GetConfig()
			out := cmd.OutOrStdout()
			if jsonOutput {
				cfg.Password = maskSecret(cfg.Password)
				printJSON(out, cfg)
				return nil
			}
			cfg.Print(out)
			fmt.Fprintf(out, "Config file: %s\n", path)
			return nil
		},
	}
}

func resolveConfigPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	return GetDefaultConfigPath()
}
