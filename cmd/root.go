// Package cmd holds the parcel CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "parcel",
	Short: "Parcel - Source Package Registry",
	Long: `Parcel is a single-binary source package registry. It accepts uploaded
package archives, validates and analyzes them, and records each release
durably so it can never be silently overwritten.`,
}

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

// Execute runs the CLI with the build metadata stamped by the linker.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./parcel.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("parcel")
		viper.SetConfigType("yaml")

		viper.AddConfigPath(".")
		if userConfigDir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(userConfigDir + "/parcel")
		}
		viper.AddConfigPath("/etc/parcel")
	}

	viper.SetEnvPrefix("PARCEL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
