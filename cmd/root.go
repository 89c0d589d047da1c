package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	coreconfig "github.com/postpilot/postpilot/core/config"
	"github.com/postpilot/postpilot/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "postpilot",
	Short: "Schedule and publish Facebook page posts over an http API",
	Long: `Postpilot queues text and image posts against a Facebook page,
publishes them when due and retries transient failures with backoff.`,
}

var (
	flagPort      string
	flagDebug     bool
	flagBasicAuth string
	flagDBDriver  string
	flagDBName    string
)

func init() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()
	cobra.OnInitialize(initEnvConfig, initApp)
}

func initFlags() {
	rootCmd.PersistentFlags().StringVarP(
		&flagPort,
		"port", "p",
		"",
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&flagDebug,
		"debug", "d",
		false,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringVarP(
		&flagBasicAuth,
		"basic-auth", "b",
		"",
		"basic auth credential | -b=yourUsername:yourPassword",
	)
	rootCmd.PersistentFlags().StringVarP(
		&flagDBDriver,
		"db-driver", "",
		"",
		`database driver --db-driver <string> | example: --db-driver="sqlite" or --db-driver="postgres"`,
	)
	rootCmd.PersistentFlags().StringVarP(
		&flagDBName,
		"db-name", "",
		"",
		`database name (file path for sqlite) --db-name <string> | example: --db-name="storages/postpilot.db"`,
	)
}

// initEnvConfig lets viper pick up environment overrides before the
// structured config is built.
func initEnvConfig() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// applyEnvOverrides lets viper-sourced environment values override the
// structured config. Flags still win over these.
func applyEnvOverrides(cfg *coreconfig.Config) {
	if v := viper.GetString("app_port"); v != "" {
		cfg.App.Port = v
	}
	if viper.IsSet("app_debug") {
		cfg.App.Debug = viper.GetBool("app_debug")
	}
	if v := viper.GetString("app_basic_auth"); v != "" {
		cfg.App.BasicAuth = strings.Split(v, ",")
	}
	if v := viper.GetString("app_base_path"); v != "" {
		cfg.App.BasePath = v
	}
	if v := viper.GetString("db_driver"); v != "" {
		cfg.Database.Driver = v
	}
	if v := viper.GetString("db_name"); v != "" {
		cfg.Database.Name = v
	}
	if v := viper.GetString("facebook_page_id"); v != "" {
		cfg.Facebook.PageID = v
	}
	if v := viper.GetString("facebook_access_token"); v != "" {
		cfg.Facebook.AccessToken = v
	}
}

func initApp() {
	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	applyEnvOverrides(cfg)

	if flagPort != "" {
		cfg.App.Port = flagPort
	}
	if flagDebug {
		cfg.App.Debug = true
	}
	if flagBasicAuth != "" {
		cfg.App.BasicAuth = strings.Split(flagBasicAuth, ",")
	}
	if flagDBDriver != "" {
		cfg.Database.Driver = flagDBDriver
	}
	if flagDBName != "" {
		cfg.Database.Name = flagDBName
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := utils.CreateFolder(cfg.Paths.Storages, cfg.Paths.Media); err != nil {
		logrus.Errorln(err)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
