package cmd

import (
	"fmt"
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facecluster/internal/config"
	"github.com/kozaktomas/facecluster/internal/facematch"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Recognize known identities in an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().Float64("threshold", 0, "Match threshold, distances strictly below it are accepted (default from MATCH_THRESHOLD)")
	analyzeCmd.Flags().Bool("json", false, "Output as JSON")
}

type analyzeOutput struct {
	Detections int                  `json:"detections"`
	Identities []facematch.Identity `json:"identities"`
	Matches    []facematch.Match    `json:"matches"`
}

// resolveThreshold takes --threshold when given and MATCH_THRESHOLD otherwise.
func resolveThreshold(cmd *cobra.Command, cfg *config.Config) (float64, error) {
	threshold := cfg.Match.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold = mustGetFloat64(cmd, "threshold")
	}
	if threshold <= 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return 0, goerr.Wrap(facematch.ErrInvalidInput, "threshold must be a positive number", goerr.V("threshold", threshold))
	}
	return threshold, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()
	threshold, err := resolveThreshold(cmd, cfg)
	if err != nil {
		return err
	}

	data, err := readImage(args[0])
	if err != nil {
		return err
	}
	faces, err := newEncoder(cfg).DetectAndEncode(ctx, data)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", args[0], err)
	}

	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	ids, matches, err := store.Recognize(ctx, facematch.NewMatcher(threshold), faces)
	if err != nil {
		return fmt.Errorf("recognizing faces: %w", err)
	}

	out := analyzeOutput{Detections: len(faces), Identities: ids.Sorted(), Matches: matches}
	if mustGetBool(cmd, "json") {
		return printJSON(out)
	}

	fmt.Printf("Detected %d faces\n", out.Detections)
	if len(out.Identities) == 0 {
		fmt.Println("No known identities recognized")
		return nil
	}
	for _, m := range out.Matches {
		fmt.Printf("  face #%d -> %d (distance %.4f)\n", m.Detection, m.Identity, m.Distance)
	}
	return nil
}
