package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultServer = "http://localhost:8080"
	envPrefix     = "TEAMCTL"
)

// cli carries settings resolved from flags, TEAMCTL_* variables and
// ~/.teamctl.yaml, in that order of precedence.
type cli struct {
	v   *viper.Viper
	out io.Writer
	api *apiClient
}

func newRootCommand(out io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:           "teamctl",
		Short:         "Inspect and steer agent team missions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}

	flags := root.PersistentFlags()
	flags.String("server", defaultServer, "agent team server base URL")
	flags.StringP("output", "o", "table", "output format: table or json")
	flags.Duration("timeout", 15*time.Second, "request timeout")
	flags.String("config", "", "config file (default ~/.teamctl.yaml)")
	_ = c.v.BindPFlag("server", flags.Lookup("server"))
	_ = c.v.BindPFlag("output", flags.Lookup("output"))
	_ = c.v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = c.v.BindPFlag("config", flags.Lookup("config"))

	root.AddCommand(
		c.templatesCommand(),
		c.instancesCommand(),
		c.missionsCommand(),
		c.approvalsCommand(),
		c.spawnCommand(),
		c.cancelCommand(),
		c.resolveCommand(true),
		c.resolveCommand(false),
		c.watchCommand(),
		c.versionCommand(),
	)
	return root
}

func (c *cli) init() error {
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if path := c.v.GetString("config"); path != "" {
		c.v.SetConfigFile(path)
	} else {
		c.v.SetConfigName(".teamctl")
		c.v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			c.v.AddConfigPath(home)
		}
		c.v.AddConfigPath(".")
	}
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && c.v.GetString("config") != "" {
			return err
		}
	}

	switch c.format() {
	case "table", "json":
	default:
		return errors.New("output must be table or json")
	}
	c.api = newAPIClient(c.v.GetString("server"), c.v.GetDuration("timeout"))
	return nil
}

func (c *cli) format() string {
	return strings.ToLower(strings.TrimSpace(c.v.GetString("output")))
}

func configFileHint() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".teamctl.yaml"
	}
	return filepath.Join(home, ".teamctl.yaml")
}
