package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/kirillkom/vinuni-assistant/internal/bootstrap"
)

var refsCmd = &cobra.Command{
	Use:   "refs",
	Short: "Inspect the reference directory",
}

var refsGetCmd = &cobra.Command{
	Use:   "get <filename>",
	Short: "Print the reference URL for a document filename",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		url, ok := app.References.Resolve(cmd.Context(), args[0])
		if !ok {
			return fmt.Errorf("no reference for %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	},
}

var refsReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Fetch the reference table and report its size",
	Long: `Reload fetches the reference table again. With --api it asks a running
API server to rebuild its directory; without it the reload only checks the
source from this process.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if apiURL, _ := cmd.Flags().GetString("api"); apiURL != "" {
			entries, err := reloadRemote(cmd.Context(), http.DefaultClient, apiURL)
			if err != nil {
				return fmt.Errorf("reload references: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d references loaded\n", entries)
			return nil
		}

		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		entries, err := app.References.Reload(cmd.Context())
		if err != nil {
			return fmt.Errorf("reload references: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d references loaded\n", entries)
		return nil
	},
}

var refsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy the reference table from Sheets or an XLSX export into Postgres",
	Long: `Import reads the reference table from the source given with --from and
upserts every filename/URL pair into the reference_links table at
REFERENCE_POSTGRES_DSN.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		if from != "sheets" && from != "xlsx" {
			return fmt.Errorf("--from must be sheets or xlsx, got %q", from)
		}
		if cfg.ReferencePostgresDSN == "" {
			return fmt.Errorf("REFERENCE_POSTGRES_DSN is empty")
		}

		source, closeSource, err := bootstrap.ReferenceSource(cmd.Context(), cfg, from, nil)
		if err != nil {
			return fmt.Errorf("open %s source: %w", from, err)
		}
		defer closeSource()
		rows, err := source.FetchRows(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch rows from %s: %w", from, err)
		}

		target, db, err := bootstrap.OpenPostgresReferences(cmd.Context(), cfg.ReferencePostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		written, err := target.Upsert(cmd.Context(), rows)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d references imported from %s\n", written, from)
		return nil
	},
}

// reloadRemote calls POST /v1/references/reload on a running API server.
func reloadRemote(ctx context.Context, client *http.Client, apiURL string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	endpoint := strings.TrimRight(apiURL, "/") + "/v1/references/reload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if msg := gjson.GetBytes(body, "error").String(); msg != "" {
			return 0, fmt.Errorf("api returned %d: %s", resp.StatusCode, msg)
		}
		return 0, fmt.Errorf("api returned %d", resp.StatusCode)
	}
	entries := gjson.GetBytes(body, "entries")
	if !entries.Exists() {
		return 0, fmt.Errorf("api response has no entries field")
	}
	return int(entries.Int()), nil
}

func init() {
	refsReloadCmd.Flags().String("api", "", "base URL of a running API server to reload, e.g. http://localhost:8080")
	refsImportCmd.Flags().String("from", "sheets", "source to import from: sheets or xlsx")

	refsCmd.AddCommand(refsGetCmd, refsReloadCmd, refsImportCmd)
	rootCmd.AddCommand(refsCmd)
}
