package commands

import (
	"fmt"
	"text/tabwriter"

	"report_renderer/internal/database"
	"report_renderer/internal/models"
	"report_renderer/internal/service"

	"github.com/spf13/cobra"
)

var (
	historyPage     int
	historyPageSize int
	historyTemplate string
	historyStage    string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the render journal, newest first",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyPage, "page", 1, "page number")
	historyCmd.Flags().IntVar(&historyPageSize, "page-size", 20, "records per page (max 100)")
	historyCmd.Flags().StringVar(&historyTemplate, "template", "", "filter by template key")
	historyCmd.Flags().StringVar(&historyStage, "stage", "", "filter by final stage (done, failed)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	renderer := service.NewRenderer(nil, service.NewGormAuditRepository(db), service.Options{}, logger)
	list, err := renderer.ListRenders(cmd.Context(), service.ListRenderParams{
		Page:     historyPage,
		PageSize: historyPageSize,
		Template: historyTemplate,
		Stage:    models.Stage(historyStage),
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tTEMPLATE\tFORMAT\tMODE\tRECORDS\tSTAGE\tBYTES\tMS")
	for _, r := range list.Renders {
		stage := string(r.Stage)
		if r.IsFailed() {
			stage = fmt.Sprintf("failed@%s", r.FailedStage)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%d\t%d\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Template, r.Format, r.Mode,
			r.RecordCount, stage, r.SizeBytes, r.DurationMS)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d, %d total\n", list.Page, list.TotalPages, list.Total)
	return nil
}
