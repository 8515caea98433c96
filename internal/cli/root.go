package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	appsvc "docchat/internal/app"
	"docchat/internal/bootstrap"
	"docchat/internal/config"
)

// Services used by the commands. PersistentPreRunE wires them from the
// configuration unless they were set already.
var (
	documentService *appsvc.DocumentService
	threadService   *appsvc.ThreadService
	appConfig       *config.Config
	closeServices   func() error
	now             = time.Now
)

var rootCmd = &cobra.Command{
	Use:           "docchatctl",
	Short:         "Administer docchat documents and threads",
	Long:          `docchatctl reads the same configuration as the docchat server and works directly on its stores.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if documentService != nil && threadService != nil {
			return nil
		}
		a, err := bootstrap.New(cmd.Context())
		if err != nil {
			return err
		}
		documentService, threadService, appConfig = a.Documents, a.Threads, a.Config
		closeServices = a.Close
		return nil
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		if closeServices == nil {
			return nil
		}
		err := closeServices()
		closeServices = nil
		return err
	},
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func requireServices() error {
	if documentService == nil || threadService == nil {
		return errors.New("services not configured")
	}
	return nil
}
