package cmd

import (
	"os"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "chatd",
	Short: "chatd is a line-protocol chat server with presence and offline delivery",
	Long: "chatd is a TCP chat server: clients log in with a username and " +
		"exchange direct messages while the server tracks presence, " +
		"friendships, offline delivery, and per-conversation history.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func initConfig() {
	viper.SetConfigName("chatd")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("chatd")
	viper.AutomaticEnv()

	jww.SetStdoutThreshold(jww.LevelInfo)
	if verbose {
		jww.SetStdoutThreshold(jww.LevelDebug)
	}

	if err := viper.ReadInConfig(); err == nil {
		jww.INFO.Printf("using config file %s", viper.ConfigFileUsed())
	}
}
