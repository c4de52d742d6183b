package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mgmu/greenlog/internal/app"
	"github.com/mgmu/greenlog/internal/utils"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "greenlog",
	Short: "Keep a photo diary of your plants.",
	Long: `greenlog tracks your plants: register them with a photo, log watering,
fertilizing and notes, and compare two photos of the same plant over time.

Plants are stored in Postgres or SQLite. Without a reachable backend greenlog
keeps working in memory for the lifetime of the process.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return utils.SetLogLevel(viper.GetString("loglevel"))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.greenlog.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("driver", app.DriverNone, "Backend: postgres, sqlite or none")
	rootCmd.PersistentFlags().String("db-url", "", "Postgres URL or SQLite file path (Postgres falls back to $HORTUS_DB_URL)")
	rootCmd.PersistentFlags().StringP("user", "u", "", "User to authenticate as; empty runs as guest")

	viper.BindPFlag("loglevel", rootCmd.PersistentFlags().Lookup("loglevel"))
	viper.BindPFlag("gateway.driver", rootCmd.PersistentFlags().Lookup("driver"))
	viper.BindPFlag("gateway.url", rootCmd.PersistentFlags().Lookup("db-url"))
	viper.BindPFlag("gateway.user", rootCmd.PersistentFlags().Lookup("user"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".greenlog")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("greenlog")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.BindEnv("gateway.url", "GREENLOG_GATEWAY_URL", "HORTUS_DB_URL")

	viper.SetDefault("gateway.fetch_retries", 3)
	viper.SetDefault("web.listen", ":8081")

	// A missing config file is fine, flags and environment are enough.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}
	}
}

func appConfig() app.Config {
	return app.Config{
		Driver:       viper.GetString("gateway.driver"),
		URL:          viper.GetString("gateway.url"),
		User:         viper.GetString("gateway.user"),
		FetchRetries: viper.GetInt("gateway.fetch_retries"),
	}
}

// withApp runs fn with an initialized app, once its plant collection is
// known. The context is cancelled on SIGINT or SIGTERM.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(appConfig(), utils.Log)
	if err != nil {
		return err
	}
	if err := a.Init(ctx); err != nil {
		return err
	}
	defer a.Dispose()

	select {
	case <-a.Garden.Synced():
	case <-ctx.Done():
		return ctx.Err()
	}
	return fn(ctx, a)
}
