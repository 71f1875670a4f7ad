package util

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// SetFlagsFromEnvVars reads and updates flag values from environment variables with prefix BNG_
func SetFlagsFromEnvVars(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.VisitAll(func(f *pflag.Flag) {
		// E.g. udp-port -> BNG_UDP_PORT
		envName := "BNG_" + flagNameToUpper(f.Name)
		if value, present := os.LookupEnv(envName); present {
			err := flags.Set(f.Name, value)
			if err != nil {
				log.Infof("unable to configure flag %s using env var %s, err: %v", f.Name, envName, err)
			}
		}
	})
}

func flagNameToUpper(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
