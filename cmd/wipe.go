package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var wipeConfirmed bool

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete every node, relationship, constraint and index",
	Long: `Removes all data and schema objects from the graph database. This is
irreversible; it refuses to run without --yes.`,
	Run: func(cmd *cobra.Command, args []string) {
		runWipe()
	},
}

func init() {
	wipeCmd.Flags().BoolVar(&wipeConfirmed, "yes", false, "confirm the wipe")
	rootCmd.AddCommand(wipeCmd)
}

func runWipe() {
	if !wipeConfirmed {
		log.Fatal("Refusing to wipe the database without --yes")
	}

	ctx := context.Background()
	_, store, logger, cleanup := setup(ctx)
	defer cleanup()

	if err := store.Wipe(ctx); err != nil {
		logger.Fatal("wipe failed", "error", err)
	}
	fmt.Println("🗑️ Database wiped.")
}
