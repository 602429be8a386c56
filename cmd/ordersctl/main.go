// Command ordersctl runs operator tasks against the shop database.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/handmade_shop/internal/app"
	"github.com/Skotchmaster/handmade_shop/internal/catalog"
	"github.com/Skotchmaster/handmade_shop/internal/dbhealth"
	"github.com/Skotchmaster/handmade_shop/internal/models"
	"github.com/Skotchmaster/handmade_shop/internal/schema"
	"github.com/Skotchmaster/handmade_shop/pkg/config"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

func main() {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env: %v", err)
	}
	root, closeApp := newRootCmd(os.Stdout)
	err := root.Execute()
	if cerr := closeApp(); cerr != nil {
		log.Printf("close: %v", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}

type cli struct {
	out io.Writer
	app *app.App
}

// newRootCmd returns the command tree and a func that releases whatever the
// executed command opened.
func newRootCmd(out io.Writer) (*cobra.Command, func() error) {
	c := &cli{out: out}
	root := &cobra.Command{
		Use:           "ordersctl",
		Short:         "Operator tasks for the shop database",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is empty")
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel).With("service", "ordersctl")
			slog.SetDefault(logger)
			cmd.SetContext(logging.IntoContext(cmd.Context(), logger))

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
	}
	root.SetOut(out)
	root.AddCommand(c.migrateCmd(), c.backfillCmd(), c.dbHealthCmd(), c.reindexCmd())
	return root, func() error {
		if c.app == nil {
			return nil
		}
		return c.app.Close()
	}
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or extend tables to the current schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := schema.Migrate(cmd.Context(), c.app.DB); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "schema up to date")
			return nil
		},
	}
}

func (c *cli) backfillCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Assign display ids to orders that have none",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun {
				n, err := c.app.Allocator.Pending(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%d orders without a display id\n", n)
				return nil
			}
			res, err := c.app.Allocator.Backfill(cmd.Context())
			if err != nil {
				return err
			}
			for _, as := range res.Assigned {
				fmt.Fprintf(c.out, "%s\t%s\n", as.OrderID, as.DisplayID)
			}
			fmt.Fprintf(c.out, "assigned %d display ids\n", len(res.Assigned))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only count pending orders")
	return cmd
}

func (c *cli) dbHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "db-health",
		Short: "List tables and row counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := dbhealth.Check(cmd.Context(), c.app.DB)
			if err != nil {
				return err
			}
			return c.printJSON(rep)
		},
	}
}

func (c *cli) reindexCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "reindex-products",
		Short: "Write every product into the search index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.app.Search.ES == nil {
				return fmt.Errorf("%w: ES_URL is empty", catalog.ErrSearchUnavailable)
			}
			var products []models.Product
			q := c.app.DB.WithContext(cmd.Context())
			if activeOnly {
				q = q.Where("is_active = ?", true)
			}
			if err := q.Order("id").Find(&products).Error; err != nil {
				return fmt.Errorf("load products: %w", err)
			}
			n, err := c.app.Search.IndexProducts(cmd.Context(), products)
			fmt.Fprintf(c.out, "indexed %d of %d products\n", n, len(products))
			if c.app.Cache != nil && n > 0 {
				if ferr := c.app.Cache.Forget(cmd.Context(), catalog.ProductKeys(products[:n])...); ferr != nil {
					fmt.Fprintf(c.out, "catalog cache not cleared: %v\n", ferr)
				} else {
					fmt.Fprintln(c.out, "catalog cache cleared")
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active-only", true, "skip inactive products")
	return cmd
}
