package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	appsvc "docchat/internal/app"
	"docchat/internal/model"
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Manage conversation threads",
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List threads, most recently updated first",
	Args:  cobra.NoArgs,
	RunE:  runThreadsList,
}

var threadsSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search thread titles and messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runThreadsSearch,
}

var threadsShowCmd = &cobra.Command{
	Use:   "show [thread-id]",
	Short: "Print a thread's messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runThreadsShow,
}

var threadsRenameCmd = &cobra.Command{
	Use:   "rename [thread-id] [title]",
	Short: "Rename a thread",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runThreadsRename,
}

var threadsDeleteCmd = &cobra.Command{
	Use:   "delete [thread-id]",
	Short: "Delete a thread and its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runThreadsDelete,
}

var threadsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete threads whose document no longer exists",
	Args:  cobra.NoArgs,
	RunE:  runThreadsCleanup,
}

var threadsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show thread totals",
	Args:  cobra.NoArgs,
	RunE:  runThreadsStats,
}

// documentFilter restricts list to one document.
var documentFilter string

func init() {
	threadsListCmd.Flags().StringVarP(&documentFilter, "document", "d", "", "Only list threads for this document id")

	threadsCmd.AddCommand(threadsListCmd)
	threadsCmd.AddCommand(threadsSearchCmd)
	threadsCmd.AddCommand(threadsShowCmd)
	threadsCmd.AddCommand(threadsRenameCmd)
	threadsCmd.AddCommand(threadsDeleteCmd)
	threadsCmd.AddCommand(threadsCleanupCmd)
	threadsCmd.AddCommand(threadsStatsCmd)
	rootCmd.AddCommand(threadsCmd)
}

func runThreadsList(cmd *cobra.Command, _ []string) error {
	if err := requireServices(); err != nil {
		return err
	}

	var (
		threads []model.Thread
		err     error
	)
	if documentFilter != "" {
		threads, err = threadService.ForDocument(cmd.Context(), documentFilter)
	} else {
		threads, err = threadService.List(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to list threads: %w", err)
	}
	printThreads(cmd, threads)
	return nil
}

func runThreadsSearch(cmd *cobra.Command, args []string) error {
	if err := requireServices(); err != nil {
		return err
	}
	threads, err := threadService.Search(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to search threads: %w", err)
	}
	printThreads(cmd, threads)
	return nil
}

func printThreads(cmd *cobra.Command, threads []model.Thread) {
	if len(threads) == 0 {
		cmd.Println("No threads found")
		return
	}
	for _, view := range appsvc.NewThreadViews(threads, now()) {
		cmd.Printf("  %s\n", view.ThreadID)
		cmd.Printf("    Title:    %s\n", view.Title)
		cmd.Printf("    Document: %s\n", view.PDFFilename)
		cmd.Printf("    Messages: %d\n", view.MessageCount)
		cmd.Printf("    Updated:  %s\n", view.UpdatedLabel)
		cmd.Println()
	}
	cmd.Printf("Total: %d threads\n", len(threads))
}

func runThreadsShow(cmd *cobra.Command, args []string) error {
	if err := requireServices(); err != nil {
		return err
	}
	thread, err := threadService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get thread: %w", err)
	}
	messages, err := threadService.Messages(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	cmd.Printf("Thread: %s (%s)\n\n", thread.Title, thread.PDFFilename)
	for i, msg := range messages {
		cmd.Printf("[%d] Q: %s\n", i+1, msg.Question)
		cmd.Printf("    A: %s\n", msg.Answer)
		for _, src := range msg.Sources {
			cmd.Printf("    - page %d\n", src.PageNumber)
		}
		cmd.Println()
	}
	return nil
}

func runThreadsRename(cmd *cobra.Command, args []string) error {
	if err := requireServices(); err != nil {
		return err
	}
	thread, err := threadService.Rename(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return fmt.Errorf("failed to rename thread: %w", err)
	}
	cmd.Printf("Renamed %s to %q\n", thread.ThreadID, thread.Title)
	return nil
}

func runThreadsDelete(cmd *cobra.Command, args []string) error {
	if err := requireServices(); err != nil {
		return err
	}
	if err := threadService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	cmd.Printf("Deleted thread %s\n", args[0])
	return nil
}

func runThreadsCleanup(cmd *cobra.Command, _ []string) error {
	if err := requireServices(); err != nil {
		return err
	}
	ids, err := documentService.IDs(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	removed, err := threadService.CleanupOrphans(cmd.Context(), ids)
	if err != nil {
		return fmt.Errorf("failed to clean up threads: %w", err)
	}
	cmd.Printf("Removed %d orphaned threads\n", removed)
	return nil
}

func runThreadsStats(cmd *cobra.Command, _ []string) error {
	if err := requireServices(); err != nil {
		return err
	}
	stats, err := threadService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}
	cmd.Printf("Threads:  %d\n", stats.TotalThreads)
	cmd.Printf("Messages: %d\n", stats.TotalMessages)
	if stats.OldestCreatedAt != nil {
		cmd.Printf("Oldest:   %s\n", stats.OldestCreatedAt.Format("2006-01-02 15:04:05"))
		cmd.Printf("Newest:   %s\n", stats.NewestCreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
