package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gltg/bmp-api/internal/config"
	"github.com/gltg/bmp-api/internal/ui"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage bmp configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write the default configuration to --config, or to
~/.config/bmp/config.toml when no path is given. An existing file is left
alone unless --force is set. The database password is never written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolvedConfigPath()
		var (
			created bool
			err     error
		)
		if configInitForce {
			err = config.SaveTo(path, config.Default())
			created = err == nil
		} else {
			created, err = config.CreateDefault(path)
		}
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{"path": path, "created": created}, nil)
			return nil
		}
		if created {
			fmt.Println(ui.Successf("wrote %s", path))
		} else {
			fmt.Println(ui.Warning(fmt.Sprintf("%s already exists; use --force to overwrite", path)))
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration after env and flag overrides",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := *getConfig()
		driver, dsn := c.DataSource()
		dsn = redactDSN(dsn, c.Database.Password)
		if c.Database.Password != "" {
			c.Database.Password = "********"
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"config":      c,
				"config_path": resolvedConfigPath(),
				"driver":      driver,
				"dsn":         dsn,
			}, nil)
			return nil
		}

		tbl := ui.NewTable(2)
		tbl.AddRow(ui.Name("config"), resolvedConfigPath())
		tbl.AddRow(ui.Name("database"), driver+" "+dsn)
		tbl.AddRow(ui.Name("server.addr"), c.Server.Addr)
		tbl.AddRow(ui.Name("server.base_path"), c.Server.BasePath)
		tbl.AddRow(ui.Name("server.rate_limit"), fmt.Sprintf("%d/min, burst %d", c.Server.RateLimitPerMinute, c.Server.Burst))
		tbl.AddRow(ui.Name("log"), c.Log.Level+" "+c.Log.Format)
		tbl.AddRow(ui.Name("limits.default_limit"), fmt.Sprint(c.Limits.DefaultLimit))
		for name, n := range c.Limits.Resources {
			tbl.AddRow(ui.Name("limits.resources."+name), fmt.Sprint(n))
		}
		fmt.Print(tbl.String())
		return nil
	},
}

func resolvedConfigPath() string {
	if p := strings.TrimSpace(configPath); p != "" {
		return p
	}
	return config.DefaultPath()
}

// redactDSN hides the password in URL DSNs and in key=value DSNs.
func redactDSN(dsn, password string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			return u.Redacted()
		}
	}
	if password == "" {
		return dsn
	}
	return strings.ReplaceAll(dsn, password, "********")
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
