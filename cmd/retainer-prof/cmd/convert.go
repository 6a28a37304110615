package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retainer-prof/internal/snapshot"
)

var (
	convertInput  string
	convertOutput string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Rewrite a heap snapshot in the binary encoding",
	Long: `Load a JSON or binary heap snapshot, check that it is consistent and write
it back in the compact binary encoding.

The output is compressed according to its suffix (.zst, .gz or none).`,
	Example: `  retainer-prof convert -i heap.json -o heap.rsnap.zst`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		stats, err := snapshot.Convert(convertInput, convertOutput)
		if err != nil {
			return err
		}
		logger.WithField("closures", stats.Closures).Info("Converted %s -> %s", convertInput, convertOutput)
		fmt.Fprintf(cmd.OutOrStdout(), "%d closures, %d -> %d bytes (%d before compression)\n",
			stats.Closures, stats.InputSize, stats.OutputSize, stats.BinarySize)
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertInput, "input", "i", "", "Snapshot to read (required)")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Binary snapshot to write (required)")
	_ = convertCmd.MarkFlagRequired("input")
	_ = convertCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(convertCmd)
}
