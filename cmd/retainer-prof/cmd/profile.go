package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/retainer-prof/internal/formatter"
	"github.com/retainer-prof/internal/service"
)

var (
	inputFile    string
	outputDir    string
	scheme       string
	taskUUID     string
	topN         int
	validate     bool
	resetStatics bool
	printCensus  bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Run one retainer pass over a heap snapshot",
	Long: `Load a heap snapshot, compute the retainer set of every reachable closure
and write a census of the heap by retainer set.

The snapshot may be JSON or binary (see convert). Files ending in .zst or
.gz are decompressed before decoding.`,
	RunE: runProfile,
}

func init() {
	profileCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Heap snapshot file (required)")
	profileCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default from config)")
	profileCmd.Flags().StringVarP(&scheme, "scheme", "s", "", "Retainer scheme: info, ccs or cc")
	profileCmd.Flags().StringVar(&taskUUID, "uuid", "", "Task UUID (generated if empty)")
	profileCmd.Flags().IntVarP(&topN, "top", "n", 0, "Number of retainer sets to report")
	profileCmd.Flags().BoolVar(&validate, "validate", false, "Rebuild every retainer set from scratch")
	profileCmd.Flags().BoolVar(&resetStatics, "reset-statics", false, "Reset static objects after the pass")
	profileCmd.Flags().BoolVar(&printCensus, "print", false, "Print the census table to stdout")
	_ = profileCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(inputFile); err != nil {
		return fmt.Errorf("input file not found: %s", inputFile)
	}

	svc := service.New(cfg, logger)
	if err := svc.Initialize(cmd.Context()); err != nil {
		return err
	}
	defer svc.Close()

	rep, err := svc.Run(cmd.Context(), &service.Request{
		TaskUUID:     taskUUID,
		InputFile:    inputFile,
		Scheme:       scheme,
		OutputDir:    outputDir,
		TopN:         topN,
		Validate:     validate,
		ResetStatics: resetStatics,
	})
	if err != nil {
		return err
	}

	if printCensus {
		n := topN
		if n <= 0 {
			n = cfg.Profile.CensusTop
		}
		return formatter.WriteText(cmd.OutOrStdout(), rep, n)
	}
	return nil
}
