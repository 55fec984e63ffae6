package cli

import (
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Run a single pipeline cycle and deliver new notices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ImportOnce(cmd.Context())
	},
}
