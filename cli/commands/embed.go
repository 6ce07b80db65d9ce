package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petal-labs/azresponses/core"
)

func (a *App) newEmbedCommand() *cobra.Command {
	var dimensions int
	cmd := &cobra.Command{
		Use:   "embed <text>...",
		Short: "Create embeddings, one per argument",
		Long: `Create embeddings for each argument with the configured deployment.

Text output prints one line per input with its dimension count. Use --json
for the vectors.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}

			req := &core.EmbeddingRequest{Input: core.BatchInput(args...)}
			if len(args) == 1 {
				req.Input = core.SingleInput(args[0])
			}
			if dimensions > 0 {
				req.Dimensions = &dimensions
			}

			env, err := client.CreateEmbeddings(cmd.Context(), req)
			if err != nil {
				return a.handleError(err)
			}
			if a.jsonOutput {
				return a.writeJSON(env.Payload)
			}

			for i, v := range env.Payload.Vectors() {
				fmt.Fprintf(a.stdout, "%d\t%d dimensions\n", i, len(v))
			}
			if a.verbose {
				fmt.Fprintf(a.stderr, "Usage: %d total tokens\n", env.Payload.Usage.TotalTokens)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&dimensions, "dimensions", 0, "output dimensions, when the model supports it")
	return cmd
}
