package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/azresponses/core"
)

type createOptions struct {
	prompt          string
	system          string
	temperature     float64
	topP            float64
	maxOutputTokens int
	reasoning       string
	previousID      string
	stream          bool
	store           bool
}

func (a *App) newCreateCommand() *cobra.Command {
	var o createOptions
	cmd := &cobra.Command{
		Use:   "create [prompt]",
		Short: "Create a model response",
		Long: `Send a prompt to the configured deployment and print the response.

Examples:
  azresponses create "Hello"
  azresponses create -p "Explain SSE" --system "Be terse" --stream
  azresponses create "And then?" --previous-response-id resp_123 --json`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.prompt == "" {
				o.prompt = strings.Join(args, " ")
			}
			return a.runCreate(cmd, &o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.prompt, "prompt", "p", "", "user prompt")
	f.StringVarP(&o.system, "system", "s", "", "instructions for the model")
	f.Float64Var(&o.temperature, "temperature", 0, "sampling temperature")
	f.Float64Var(&o.topP, "top-p", 0, "nucleus sampling mass")
	f.IntVar(&o.maxOutputTokens, "max-output-tokens", 0, "upper bound on generated tokens")
	f.StringVar(&o.reasoning, "reasoning-effort", "", "reasoning effort (none, low, medium, high)")
	f.StringVar(&o.previousID, "previous-response-id", "", "continue from a stored response")
	f.BoolVar(&o.stream, "stream", false, "stream text as it is generated")
	f.BoolVar(&o.store, "store", true, "let the service store the response")
	return cmd
}

func (a *App) runCreate(cmd *cobra.Command, o *createOptions) error {
	if strings.TrimSpace(o.prompt) == "" {
		return a.fail(ExitValidation, "validation_error",
			fmt.Errorf("prompt required: pass it as an argument or with --prompt"))
	}

	client, err := a.newClient()
	if err != nil {
		return err
	}

	b := client.Responses("").User(o.prompt)
	if o.system != "" {
		b = b.Instructions(o.system)
	}
	if cmd.Flags().Changed("temperature") {
		b = b.Temperature(o.temperature)
	}
	if cmd.Flags().Changed("top-p") {
		b = b.TopP(o.topP)
	}
	if o.maxOutputTokens > 0 {
		b = b.MaxOutputTokens(o.maxOutputTokens)
	}
	if o.reasoning != "" {
		b = b.ReasoningEffort(core.ReasoningEffort(o.reasoning))
	}
	if o.previousID != "" {
		b = b.ContinueFrom(o.previousID)
	}
	if cmd.Flags().Changed("store") {
		b = b.Store(o.store)
	}

	ctx := cmd.Context()
	if !o.stream {
		env, err := b.GetResponse(ctx)
		if err != nil {
			return a.handleError(err)
		}
		return a.printResponse(env, false)
	}

	stream, err := b.Stream(ctx)
	if err != nil {
		return a.handleError(err)
	}
	if a.jsonOutput {
		env, err := core.DrainStream(ctx, stream)
		if err != nil {
			return a.handleError(err)
		}
		return a.printResponse(env, stream.FellBack())
	}

	_, env, err := core.CollectText(ctx, stream, func(delta string) {
		fmt.Fprint(a.stdout, delta)
	})
	fmt.Fprintln(a.stdout)
	if err != nil {
		return a.handleError(err)
	}
	a.printUsage(env)
	return nil
}

// responseOutput is the --json rendering of a response.
type responseOutput struct {
	ID         string      `json:"id"`
	Model      string      `json:"model"`
	Status     string      `json:"status"`
	Output     string      `json:"output"`
	Usage      *core.Usage `json:"usage,omitempty"`
	RequestID  string      `json:"request_id,omitempty"`
	FellBack   bool        `json:"fell_back,omitempty"`
	PreviousID string      `json:"previous_response_id,omitempty"`
}

func (a *App) printResponse(env *core.Envelope[*core.Response], fellBack bool) error {
	resp := env.Payload
	if a.jsonOutput {
		return a.writeJSON(responseOutput{
			ID:         resp.ID,
			Model:      resp.Model,
			Status:     resp.Status,
			Output:     resp.Text(),
			Usage:      resp.Usage,
			RequestID:  env.Metadata.RequestID,
			FellBack:   fellBack,
			PreviousID: resp.PreviousResponseID,
		})
	}

	fmt.Fprintln(a.stdout, resp.Text())
	a.printUsage(env)
	return nil
}

func (a *App) printUsage(env *core.Envelope[*core.Response]) {
	if !a.verbose || env == nil || env.Payload.Usage == nil {
		return
	}
	u := env.Payload.Usage
	fmt.Fprintf(a.stderr, "Response %s: %d input + %d output = %d total tokens\n",
		env.Payload.ID, u.InputTokens, u.OutputTokens, u.TotalTokens)
}
