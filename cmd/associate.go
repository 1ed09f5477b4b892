package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facecluster/internal/config"
	"github.com/kozaktomas/facecluster/internal/facematch"
	"github.com/kozaktomas/facecluster/internal/oracle"
)

var associateCmd = &cobra.Command{
	Use:   "associate <identity> <image>",
	Short: "Associate the first face in an image with an identity",
	Long: `Detect faces in the image and append the embedding of the first face
to the identity's collection. The identity is a number and may be given in
mention form (<@123>).`,
	Args: cobra.ExactArgs(2),
	RunE: runAssociate,
}

func init() {
	rootCmd.AddCommand(associateCmd)
}

func runAssociate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	id, err := facematch.ParseIdentity(args[0])
	if err != nil {
		return err
	}
	data, err := readImage(args[1])
	if err != nil {
		return err
	}

	emb, err := oracle.FirstFace(ctx, newEncoder(cfg), data)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", args[1], err)
	}

	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Append(ctx, id, emb); err != nil {
		return fmt.Errorf("associating face: %w", err)
	}
	fmt.Printf("Associated face with identity %d (%d embeddings stored)\n", id, len(store.Embeddings(id)))
	return nil
}
