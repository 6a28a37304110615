package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/retainer-prof/internal/formatter"
	"github.com/retainer-prof/internal/repository"
	apperrors "github.com/retainer-prof/pkg/errors"
)

var (
	censusTop  int
	censusJSON bool
)

var censusCmd = &cobra.Command{
	Use:   "census <task-uuid>",
	Short: "Print a census stored in the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runCensus,
}

func init() {
	censusCmd.Flags().IntVarP(&censusTop, "top", "n", 0, "Number of retainer sets to print (0 prints all)")
	censusCmd.Flags().BoolVar(&censusJSON, "json", false, "Print the report summary as JSON")
	rootCmd.AddCommand(censusCmd)
}

func runCensus(cmd *cobra.Command, args []string) error {
	db := cfg.Database
	if !db.Enabled {
		return apperrors.New(apperrors.CodeConfigError, "database is disabled in the configuration")
	}

	gormDB, err := repository.NewGormDB(&repository.DBConfig{
		Type:     db.Type,
		Path:     db.Path,
		Host:     db.Host,
		Port:     db.Port,
		Database: db.Database,
		User:     db.User,
		Password: db.Password,
		MaxConns: db.MaxConns,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to open database", err)
	}
	repos, err := repository.NewRepositories(gormDB, db.Type)
	if err != nil {
		return err
	}
	defer repos.Close()

	rep, err := repos.Census.GetPassByUUID(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if censusJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(formatter.NewRegistry(censusTop).FormatSummary(rep))
	}
	return formatter.WriteText(cmd.OutOrStdout(), rep, censusTop)
}
