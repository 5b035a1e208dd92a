/*
cocctl - administrative CLI for the COC engine (spec.md §4.5, §4.6):
certify a period, run an expire-sweep, or register a holiday without
going through the HTTP surface. Grounded on the cobra command-tree
style used elsewhere in the example pack's CLI tooling (one subcommand
per operation, flags bound per-command, a shared root command for
global flags like --db).
*/
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cocrecords/coc-engine/certification"
	"github.com/cocrecords/coc-engine/coc"
	"github.com/cocrecords/coc-engine/creditledger"
	"github.com/cocrecords/coc-engine/docstore"
	"github.com/cocrecords/coc-engine/overtimelog"
)

var dbPath string

func main() {
	root := &cobra.Command{Use: "cocctl", Short: "Administrative CLI for the compensatory overtime credit engine"}
	root.PersistentFlags().StringVar(&dbPath, "db", "coc.db", "SQLite database path")

	root.AddCommand(certifyCmd())
	root.AddCommand(expireSweepCmd())
	root.AddCommand(addHolidayCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*docstore.SQLite, error) {
	return docstore.Open(dbPath)
}

func certifyCmd() *cobra.Command {
	var employeeID, month, issuedBy, issuance string
	var year int

	cmd := &cobra.Command{
		Use:   "certify",
		Short: "Certify an employee's uncertified logs for a month, issuing a credit batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			logs := overtimelog.New(store)
			engine := certification.New(store, logs)

			today := coc.DateFromTime(time.Now())
			dateOfIssuance := today
			if issuance != "" {
				parsed, err := coc.ParseDate(issuance)
				if err != nil {
					return fmt.Errorf("invalid --issuance date: %w", err)
				}
				dateOfIssuance = parsed
			}

			cert, err := engine.Certify(context.Background(), today, certification.Input{
				EmployeeID: employeeID, MonthName: month, Year: year,
				DateOfIssuance: dateOfIssuance, IssuedBy: issuedBy,
			})
			if err != nil {
				return err
			}
			fmt.Printf("certified %s %d for %s: batch=%s hours=%s valid-until=%s\n",
				month, year, employeeID, cert.BatchID, cert.TotalHours.String(), cert.ValidUntil.ISO())
			return nil
		},
	}
	cmd.Flags().StringVar(&employeeID, "employee", "", "employee id (required)")
	cmd.Flags().StringVar(&month, "month", "", "month name, e.g. March (required)")
	cmd.Flags().IntVar(&year, "year", 0, "year (required)")
	cmd.Flags().StringVar(&issuedBy, "issued-by", "admin", "actor id issuing the certificate")
	cmd.Flags().StringVar(&issuance, "issuance", "", "date of issuance, YYYY-MM-DD (default: today)")
	cmd.MarkFlagRequired("employee")
	cmd.MarkFlagRequired("month")
	cmd.MarkFlagRequired("year")
	return cmd
}

func expireSweepCmd() *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "expire-sweep",
		Short: "Expire every Active credit batch whose valid-until has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			today := coc.DateFromTime(time.Now())
			if asOf != "" {
				parsed, err := coc.ParseDate(asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of date: %w", err)
				}
				today = parsed
			}

			ledger := creditledger.New(store, overtimelog.New(store))
			if err := ledger.ExpireSweep(context.Background(), today, "cocctl"); err != nil {
				return err
			}
			fmt.Printf("expire sweep completed as of %s\n", today.ISO())
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "sweep as of this date, YYYY-MM-DD (default: today)")
	return cmd
}

func addHolidayCmd() *cobra.Command {
	var name, date, kind string

	cmd := &cobra.Command{
		Use:   "add-holiday",
		Short: "Register a holiday used by the day-type classifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			parsed, err := coc.ParseDate(date)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			id := fmt.Sprintf("holiday-%s", parsed.ISO())
			return store.Create(context.Background(), "holidays", id, docstore.Doc{
				"id": id, "name": name, "date": parsed, "year": parsed.Year, "type": kind,
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "holiday name (required)")
	cmd.Flags().StringVar(&date, "date", "", "holiday date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&kind, "type", coc.HolidayRegular, "Regular or Special")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("date")
	return cmd
}
