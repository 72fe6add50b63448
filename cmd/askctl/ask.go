package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/vinuni-assistant/internal/bootstrap"
	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question about VinUni",
	Long: `Ask resolves a question against the curated knowledge base, falling back to
web search when the knowledge base has no answer, and prints the answer with
its citations.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		viaNATS, _ := cmd.Flags().GetBool("nats")
		asJSON, _ := cmd.Flags().GetBool("json")

		var result domain.ResolutionResult
		if viaNATS {
			queue, err := bootstrap.OpenQueue(cfg, nil, logger)
			if err != nil {
				return err
			}
			defer queue.Close()
			result, err = queue.Ask(cmd.Context(), question)
			if err != nil {
				return fmt.Errorf("ask worker: %w", err)
			}
		} else {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			result = app.Pipeline.Resolve(cmd.Context(), question)
		}

		if asJSON {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		}
		printResult(cmd.OutOrStdout(), result)
		return nil
	},
}

func init() {
	askCmd.Flags().Bool("nats", false, "send the question to a worker over NATS instead of resolving in-process")
	askCmd.Flags().Bool("json", false, "print the result as JSON")

	rootCmd.AddCommand(askCmd)
}

func printResult(w io.Writer, result domain.ResolutionResult) {
	fmt.Fprintln(w, result.Answer)
	if len(result.Citations) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, citation := range result.Citations {
		if citation.URL != nil {
			fmt.Fprintf(w, "  [%d] %s - %s\n", i+1, citation.Title, *citation.URL)
			continue
		}
		fmt.Fprintf(w, "  [%d] %s\n", i+1, citation.Title)
	}
}
