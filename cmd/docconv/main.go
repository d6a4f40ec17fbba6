// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the docconv CLI. It converts local
// documents through a remote unoconv-style web service, keeping sources,
// artifacts and job records on the local host.
package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/docconv/internal/logging"
	"github.com/pdiddy/docconv/internal/secrets"
	"github.com/pdiddy/docconv/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	envPrefix  = "DOCCONV"
	secretsDir = ".secrets/"
	dotEnvFile = ".env"

	defaultDatabaseName = "jobs.db"
)

var (
	// cfg is the resolved configuration, set before any subcommand runs.
	cfg types.Config

	// logger is the root logger, set before any subcommand runs.
	logger = zap.NewNop()
)

// rootCmd is the base command for the docconv CLI.
var rootCmd = &cobra.Command{
	Use:   "docconv",
	Short: "Convert documents through a remote conversion service",
	Long: `docconv submits documents to an unoconv-style conversion web service,
polls until the conversion finishes, and stores the converted artifact.

Configure the service with service.url in docconv.yaml, the
DOCCONV_SERVICE_URL environment variable, or --service-url. A bearer
token, if the service needs one, is read from .secrets/service-token.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		c, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		l, err := logging.New(c.Log)
		if err != nil {
			return err
		}

		s, err := secrets.Load(secretsDir, l)
		if err != nil {
			return err
		}
		if c.Service.Token == "" {
			c.Service.Token = s.ServiceToken()
		}
		if len(s) > 0 {
			l.Debug("loaded secrets", zap.Strings("keys", s.Keys()))
		}
		if used := viper.ConfigFileUsed(); used != "" {
			l.Debug("using config file", zap.String("path", used))
		}

		cfg, logger = c, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./docconv.yaml or ~/.config/docconv/docconv.yaml)")
	rootCmd.PersistentFlags().String("service-url", "", "base URL of the conversion service")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("data-dir", "", "base directory for stored sources and artifacts")

	_ = viper.BindPFlag("service.url", rootCmd.PersistentFlags().Lookup("service-url"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("storage.dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("docconv")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "docconv"))
		}
	}
	// A missing config file is fine; defaults and environment apply.
	_ = viper.ReadInConfig()
}

// setDefaults registers every configuration key so that environment
// variables are honoured by Unmarshal.
func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()
	v.SetDefault("service.url", d.Service.URL)
	v.SetDefault("service.strict_readiness", d.Service.StrictReadiness)
	v.SetDefault("service.token", "")
	v.SetDefault("http.connect_timeout", d.HTTP.ConnectTimeout)
	v.SetDefault("http.max_redirects", d.HTTP.MaxRedirects)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("cache.formats_ttl", d.Cache.FormatsTTL)
	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("storage.scratch_dir", d.Storage.ScratchDir)
	v.SetDefault("storage.database", d.Storage.Database)
	v.SetDefault("poll.interval", d.Poll.Interval)
	v.SetDefault("poll.max_interval", d.Poll.MaxInterval)
	v.SetDefault("poll.max_attempts", d.Poll.MaxAttempts)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("local.image", d.Local.Image)
	v.SetDefault("local.name", d.Local.Name)
	v.SetDefault("local.port", d.Local.Port)
	v.SetDefault("local.container_port", d.Local.ContainerPort)
}

// loadConfig resolves the configuration from v: flags, then DOCCONV_*
// environment variables, then the config file, then defaults.
func loadConfig(v *viper.Viper) (types.Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c types.Config
	if err := v.Unmarshal(&c); err != nil {
		return types.Config{}, err
	}
	if c.Storage.Database == "" {
		c.Storage.Database = filepath.Join(c.Storage.Dir, defaultDatabaseName)
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
