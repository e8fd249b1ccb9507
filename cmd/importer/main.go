package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"lectureflow/internal/attendance"
	"lectureflow/internal/config"
	"lectureflow/internal/importer"
	"lectureflow/internal/store"
)

type reader func(io.Reader) ([]attendance.Lesson, error)

func main() {
	cfg := config.Load()
	if err := rootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd(cfg config.App) *cobra.Command {
	root := &cobra.Command{
		Use:          "importer",
		Short:        "Load the lesson schedule into the store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfg.StoreDriver, "driver", cfg.StoreDriver, "database driver (pgx or sqlite3)")
	root.PersistentFlags().StringVar(&cfg.DatabaseURL, "dsn", cfg.DatabaseURL, "database connection string")

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			log.Println("schema up to date")
			return nil
		},
	})
	root.AddCommand(loadCmd(&cfg, "xlsx <workbook>", "Import a timetable workbook", importer.ReadWorkbook))
	root.AddCommand(loadCmd(&cfg, "csv <file>", "Import normalized rows (date,time,committee,lecture_name,type)", importer.ReadCSV))
	return root
}

func loadCmd(cfg *config.App, use, short string, read reader) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			lessons, err := read(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if dryRun {
				for _, l := range lessons {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n", l.DateString(), l.Time, l.Category, l.Subject, l.Type)
				}
				log.Printf("%d lessons parsed, nothing written", len(lessons))
				return nil
			}

			db, err := openStore(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := importer.Load(cmd.Context(), attendance.NewRepository(db.Client), lessons)
			if err != nil {
				return err
			}
			log.Printf("imported %d new lessons from %s (%d parsed)", n, args[0], len(lessons))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and print without writing")
	return cmd
}

func openStore(ctx context.Context, cfg config.App) (*store.DB, error) {
	return store.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL)
}
