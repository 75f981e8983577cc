package main

import (
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/entitylist/entitylist/internal/logging"
)

// annotationStructuredLog marks commands that run long-lived or database work
// and report through the structured logger instead of plain stderr lines.
const annotationStructuredLog = "entitylist/structured-log"

var rootCmd = &cobra.Command{
	Use:           "entitylist",
	Short:         "entitylist serves searchable, paginated entry and asset lists.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		structured := commandUsesStructuredLogging(cmd)
		setCommandExecutionContext(commandExecutionContext{
			CommandPath:       cmd.CommandPath(),
			UsesStructuredLog: structured,
		})
		if !structured {
			return nil
		}
		if _, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: cmd.CommandPath(), Writer: os.Stderr}); err != nil {
			return usageError(err)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, searchCmd, contentTypesCmd)
}

type commandExecutionContext struct {
	CommandPath       string
	UsesStructuredLog bool
}

var (
	commandExecutionMu      sync.RWMutex
	currentCommandExecution commandExecutionContext
)

func setCommandExecutionContext(ctx commandExecutionContext) {
	commandExecutionMu.Lock()
	currentCommandExecution = ctx
	commandExecutionMu.Unlock()
}

func resetCommandExecutionContext() {
	setCommandExecutionContext(commandExecutionContext{})
}

func currentCommandExecutionContext() commandExecutionContext {
	commandExecutionMu.RLock()
	defer commandExecutionMu.RUnlock()
	return currentCommandExecution
}

func commandUsesStructuredLogging(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationStructuredLog] == "true" {
			return true
		}
	}
	return false
}

func structuredLogAnnotation() map[string]string {
	return map[string]string{annotationStructuredLog: "true"}
}
