package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facecluster/internal/config"
	"github.com/kozaktomas/facecluster/internal/constants"
	"github.com/kozaktomas/facecluster/internal/oracle"
)

var searchCmd = &cobra.Command{
	Use:   "search <image>",
	Short: "Find the stored faces most similar to the first face in an image",
	Long: `Search the approximate nearest neighbor index for stored embeddings close
to the first face in the image. Unlike analyze, no threshold is applied.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Int("k", constants.DefaultSearchLimit, "Number of results")
	searchCmd.Flags().Bool("json", false, "Output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	k := mustGetInt(cmd, "k")
	if k < 1 || k > constants.MaxSearchLimit {
		return fmt.Errorf("--k must be between 1 and %d", constants.MaxSearchLimit)
	}

	data, err := readImage(args[0])
	if err != nil {
		return err
	}
	emb, err := oracle.FirstFace(ctx, newEncoder(cfg), data)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", args[0], err)
	}

	store, err := openStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer store.Close()

	hits, err := store.Index().Search(emb, k)
	if err != nil {
		return fmt.Errorf("searching index: %w", err)
	}
	if mustGetBool(cmd, "json") {
		return printJSON(hits)
	}

	if len(hits) == 0 {
		fmt.Println("No stored faces")
		return nil
	}
	for i, h := range hits {
		fmt.Printf("%3d. identity %d (distance %.4f)\n", i+1, h.Identity, h.Distance)
	}
	return nil
}
