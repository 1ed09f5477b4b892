package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facecluster/internal/config"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every identity from the store",
	RunE:  runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	ids := store.Identities()
	if len(ids) > 0 && !mustGetBool(cmd, "yes") {
		prompt := fmt.Sprintf("Delete %d identities with %d embeddings?", len(ids), store.Count())
		if !confirmAction(prompt) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}
	fmt.Println("Identity store reset")
	return nil
}

// confirmAction prompts the user for y/N confirmation on stdin.
func confirmAction(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}
