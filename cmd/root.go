package cmd

import (
	"os"
	"strings"

	"github.com/imagespy/rpm-registry/layout"
	rlog "github.com/imagespy/rpm-registry/log"
	"github.com/imagespy/rpm-registry/resolver"
	"github.com/imagespy/rpm-registry/store/rpm"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultOCIPath = "/usr/share/suse-docker-images/oci"
	envPrefix      = "RPMREGISTRY"
)

var (
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "rpm-registry",
	Short: "Serves container images installed as packages through the registry API",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a configuration file")
	rootCmd.PersistentFlags().String("log.level", "warn", "set the log level")
	rootCmd.PersistentFlags().String("log.format", "text", "log format, text or json")
	rootCmd.PersistentFlags().String("oci.path", defaultOCIPath, "directory containing the image layouts")
	rootCmd.PersistentFlags().String("rpm.binary", "rpm", "the rpm binary to query the package database with")
	rootCmd.PersistentFlags().Int("rpm.workers", 4, "number of rpm processes that run at the same time")
	rootCmd.PersistentFlags().Duration("rpm.timeout", 0, "kill rpm processes that run longer, 0 disables the timeout")
	mustBindFlags(rootCmd)
}

// Execute runs the command line interface.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initConfig() error {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return err
		}
	}

	mustInitLogging(viper.GetString("log.level"), viper.GetString("log.format"))
	log.Debugf("using oci path %s", viper.GetString("oci.path"))
	return nil
}

func mustBindFlags(cmd *cobra.Command) {
	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		log.Fatal(err)
	}

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		log.Fatal(err)
	}
}

func mustInitLogging(level string, format string) {
	if err := rlog.Configure(log.StandardLogger(), level, format, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

// newResolver wires the resolver to the rpm database. The returned function
// releases the process pool.
func newResolver() (*resolver.Resolver, func()) {
	runner := rpm.NewPoolRunner(
		&rpm.ExecRunner{
			Binary:  viper.GetString("rpm.binary"),
			Timeout: viper.GetDuration("rpm.timeout"),
		},
		viper.GetInt("rpm.workers"),
	)
	logger := log.StandardLogger()
	store := rpm.New(runner, logger.WithField("component", "rpm"))
	res := resolver.New(store, layout.New(viper.GetString("oci.path")), logger.WithField("component", "resolver"))
	return res, runner.Close
}
