package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aayush9029/apple-mail-exporter/config"
	"github.com/Aayush9029/apple-mail-exporter/filter"
	"github.com/Aayush9029/apple-mail-exporter/maildate"
	"github.com/Aayush9029/apple-mail-exporter/model"
	"github.com/Aayush9029/apple-mail-exporter/stats"
)

const csvLimit = 1000

var (
	reportDir string
	topN      int
)

// reportField is one column of the frequency report.
type reportField struct {
	Name  string
	Title string
	Key   func(model.Record) string
}

var reportFields = []reportField{
	{Name: "sender", Title: "Senders", Key: senderKey},
	{Name: "mailbox", Title: "Mailboxes", Key: mailboxKey},
	{Name: "year", Title: "Years", Key: yearKey},
}

var reportCmd = &cobra.Command{
	Use:   "report [keywords...]",
	Short: "Show top senders, mailboxes and years among matching emails",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cmd)
		if err != nil {
			return err
		}

		logger, cleanup, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = cleanup()
		}()

		paths, err := cfg.MailPaths()
		if err != nil {
			return err
		}
		f, err := filter.New(filterOptions(cfg))
		if err != nil {
			return fmt.Errorf("create filter: %w", err)
		}

		a := &app{cfg: cfg, paths: paths, filter: f, logger: logger}
		records, err := a.search(cmd.Context(), cleanKeywords(args), 0)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		counter := countRecords(records)
		printReport(out, counter, len(records), topN)

		if err := saveCSVReports(counter, reportDir, csvLimit); err != nil {
			return fmt.Errorf("error saving CSV reports: %w", err)
		}
		fmt.Fprintf(out, "\nReports saved to directory: %s\n", reportDir)
		logger.Debug("report written", "dir", reportDir, "records", len(records))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportDir, "output", "o", ".", "Output directory for CSV reports")
	reportCmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top items to display in statistics")
	config.RegisterFilterFlags(reportCmd)
	rootCmd.AddCommand(reportCmd)
}

func countRecords(records []model.Record) map[string]map[string]int {
	counter := make(map[string]map[string]int, len(reportFields))
	for _, field := range reportFields {
		counter[field.Name] = make(map[string]int)
	}
	for _, rec := range records {
		for _, field := range reportFields {
			counter[field.Name][field.Key(rec)]++
		}
	}
	return counter
}

func printReport(out io.Writer, counter map[string]map[string]int, total, top int) {
	fmt.Fprintf(out, "Analyzed %d matching emails.\n\n", total)
	for _, field := range reportFields {
		fmt.Fprintf(out, "Top %d %s:\n", top, field.Title)
		stats.PrettyPrintTop(out, counter[field.Name], top)
		fmt.Fprintln(out)
	}
}

func saveCSVReports(counter map[string]map[string]int, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, field := range reportFields {
		path := filepath.Join(dir, fmt.Sprintf("report_%s.csv", field.Name))
		if err := writeCSV(path, stats.Top(counter[field.Name], limit)); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, counts []stats.Count) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Value", "Count"}); err != nil {
		file.Close()
		return err
	}
	for _, c := range counts {
		if err := writer.Write([]string{c.Key, strconv.Itoa(c.Value)}); err != nil {
			file.Close()
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func senderKey(rec model.Record) string {
	switch {
	case rec.SenderName != "" && rec.SenderAddress != "":
		return fmt.Sprintf("%s <%s>", rec.SenderName, rec.SenderAddress)
	case rec.Sender() != "":
		return rec.Sender()
	}
	return "unknown"
}

func mailboxKey(rec model.Record) string {
	if rec.MailboxURL == "" {
		return "(none)"
	}
	return rec.MailboxURL
}

func yearKey(rec model.Record) string {
	t, ok := maildate.Time(rec.DateSentRaw)
	if !ok {
		return maildate.Unknown
	}
	return strconv.Itoa(t.Year())
}
