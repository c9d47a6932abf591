// Command catalogctl runs catalog operations from the command line: schema
// migration, sync runs, enrichment batches and searches.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/app"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/config"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/logging"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/services"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	envFile string
	cfg     *config.Config
	logger  *logging.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "catalogctl",
		Short:        "Operate the workflow catalog",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(c.envFile)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = logging.NewLogger(cfg.Log.Level, cfg.LogFormat())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env", "", "Path to .env file")

	root.AddCommand(
		c.migrateCmd(),
		c.syncCmd(),
		c.enrichCmd(),
		c.searchCmd(),
		c.listCmd(),
	)
	return root
}

// withService runs fn against a freshly assembled catalog service.
func (c *cli) withService(ctx context.Context, fn func(*services.CatalogService) error) error {
	defer c.logger.Sync()
	a, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a.Service)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the catalog schema (idempotent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := repository.Migrate(cmd.Context(), c.cfg.DSN()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func (c *cli) syncCmd() *cobra.Command {
	var incremental bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the catalog with the source repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("incremental") {
				c.cfg.Source.Incremental = incremental
			}
			return c.withService(cmd.Context(), func(svc *services.CatalogService) error {
				result, err := svc.Sync(cmd.Context())
				if result != nil {
					if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&incremental, "incremental", false, "Skip files whose content is unchanged since the last run")
	return cmd
}

func (c *cli) enrichCmd() *cobra.Command {
	var window models.EnrichWindow
	var all bool
	cmd := &cobra.Command{
		Use:       "enrich <description|seo|embedding>",
		Short:     "Generate artifacts for entries that lack them",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"description", "seo", "embedding"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := models.ParseArtifactKind(args[0])
			if !ok {
				return fmt.Errorf("unknown artifact kind %q", args[0])
			}
			return c.withService(cmd.Context(), func(svc *services.CatalogService) error {
				if !all {
					result, err := svc.Enrich(cmd.Context(), kind, window)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), result)
				}
				result, err := svc.EnrichAll(cmd.Context(), kind, window, func(batch *models.EnrichResult) {
					c.logger.Info("batch complete",
						"kind", kind,
						"processed", batch.Processed,
						"failed", batch.Failed,
						"next_offset", batch.NextOffset,
					)
				})
				if result != nil {
					if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&window.Offset, "offset", 0, "Cursor to resume from (nextOffset of the previous batch)")
	cmd.Flags().IntVar(&window.Limit, "limit", 0, "Batch size (0 uses the configured default)")
	cmd.Flags().BoolVar(&all, "all", false, "Keep invoking batches until no work remains")
	return cmd
}

func (c *cli) searchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank catalog entries against a free-text query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *services.CatalogService) error {
				resp, err := svc.Search(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (0 uses the configured default)")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	opts := repository.ListOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(svc *services.CatalogService) error {
				entries, err := svc.ListWorkflows(cmd.Context(), opts)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of entries to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "Page size")
	cmd.Flags().StringVar(&opts.Category, "category", "", "Only entries in this category")
	return cmd
}
