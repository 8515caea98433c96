package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	appsvc "docchat/internal/app"
	"docchat/internal/pkg/display"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Inspect uploaded documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document totals",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsStats,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [file-id]",
	Short: "Delete a document and the threads about it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

func init() {
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsStatsCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	if err := requireServices(); err != nil {
		return err
	}
	docs, err := documentService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No documents found")
		return nil
	}

	for _, view := range appsvc.NewDocumentViews(docs, now()) {
		cmd.Printf("  %s\n", view.FileID)
		cmd.Printf("    Name:     %s\n", view.Filename)
		cmd.Printf("    Size:     %s\n", view.SizeLabel)
		cmd.Printf("    Status:   %s\n", view.Status)
		cmd.Printf("    Uploaded: %s\n", view.CreatedLabel)
		cmd.Println()
	}
	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentsStats(cmd *cobra.Command, _ []string) error {
	if err := requireServices(); err != nil {
		return err
	}
	stats, err := documentService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}
	cmd.Printf("Documents: %d\n", stats.TotalFiles)
	cmd.Printf("Size:      %s\n", display.FileSize(stats.TotalBytes))
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	if err := requireServices(); err != nil {
		return err
	}
	removed, err := documentService.Delete(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	cmd.Printf("Deleted document %s and %d threads\n", args[0], removed)
	return nil
}
