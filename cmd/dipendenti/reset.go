package main

import (
	"os"

	"github.com/JonMunkholm/dipendenti/internal/admin"
	"github.com/spf13/cobra"
)

var resetYes bool

// resetCmd empties the persisted tables
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every persisted run",
	Long: `Delete every row of dipendenti_ok and dipendenti_scarti in the
configured store. Asks for confirmation unless --yes is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		return admin.Reset(cmd.Context(), a.store, os.Stdin, os.Stdout, resetYes)
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
}
