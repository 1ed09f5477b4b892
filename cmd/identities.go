package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facecluster/internal/config"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List stored identities and their embedding counts",
	Args:  cobra.NoArgs,
	RunE:  runIdentities,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)

	identitiesCmd.Flags().Bool("json", false, "Output as JSON")
}

func runIdentities(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	summaries := store.Summaries()
	if mustGetBool(cmd, "json") {
		return printJSON(summaries)
	}

	if len(summaries) == 0 {
		fmt.Println("No identities stored")
		return nil
	}
	fmt.Printf("%-20s %s\n", "IDENTITY", "EMBEDDINGS")
	for _, s := range summaries {
		fmt.Printf("%-20d %d\n", s.Identity, s.Embeddings)
	}
	fmt.Printf("\nTotal: %d identities, %d embeddings\n", len(summaries), store.Count())
	return nil
}
