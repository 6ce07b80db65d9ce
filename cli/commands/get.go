package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *App) newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <response-id>",
		Short: "Retrieve a stored response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			env, err := client.Retrieve(cmd.Context(), args[0])
			if err != nil {
				return a.handleError(err)
			}
			return a.printResponse(env, false)
		},
	}
}

func (a *App) newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <response-id>",
		Short: "Delete a stored response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			env, err := client.Delete(cmd.Context(), args[0])
			if err != nil {
				return a.handleError(err)
			}
			if a.jsonOutput {
				return a.writeJSON(env.Payload)
			}
			if env.Payload.Deleted {
				fmt.Fprintf(a.stdout, "deleted %s\n", env.Payload.ID)
			} else {
				fmt.Fprintf(a.stdout, "%s was not deleted\n", args[0])
			}
			return nil
		},
	}
}
