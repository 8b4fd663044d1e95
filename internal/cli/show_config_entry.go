package trigbench

import (
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/trigbench/internal/appconfig"
)

func runShowConfig(cmd *cobra.Command) {
	cfg := activeConfig()
	appconfig.ShowConfig(cmd.OutOrStdout(), viper.ConfigFileUsed(), cfg)
	if DebugEnabled() {
		pp.Fprintln(cmd.OutOrStdout(), cfg)
	}
}
