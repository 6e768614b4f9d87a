package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/sales_recon/config"
	"github.com/mmdatafocus/sales_recon/models"
	"github.com/mmdatafocus/sales_recon/sheets"
)

// ledger-import copies a workbook's ledger and channel reports into MySQL so
// later runs can use --use-db.
func main() {
	workbookPath := flag.String("workbook", "", "Required: path to the .xlsx workbook")
	configPath := flag.String("config", "", "Optional: layout YAML (defaults to the built-in layout)")
	channels := flag.String("channels", "", "Optional: comma separated channels to import (default all)")
	migrate := flag.Bool("migrate", false, "Run AutoMigrate before importing")
	flag.Parse()

	if strings.TrimSpace(*workbookPath) == "" {
		fmt.Fprintln(os.Stderr, "--workbook is required")
		os.Exit(1)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.ConnectDatabase(); err != nil {
		fmt.Fprintf(os.Stderr, "connect database: %v\n", err)
		os.Exit(1)
	}
	if *migrate {
		models.MigrateTable()
	}

	wb, err := sheets.Open(*workbookPath, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer wb.Close()

	ctx := context.Background()
	store := models.NewGormStore(config.GetDB())

	ledger, err := wb.LoadLedger(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load ledger: %v\n", err)
		os.Exit(1)
	}
	if err := store.SaveLedger(ctx, ledger); err != nil {
		fmt.Fprintf(os.Stderr, "save ledger: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("imported %d ledger rows\n", len(ledger))

	names := cfg.ChannelNames()
	if strings.TrimSpace(*channels) != "" {
		names = strings.Split(*channels, ",")
	}
	for _, name := range names {
		ch, err := cfg.Channel(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		txs, err := wb.LoadTransactions(ctx, ch.Name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load %s: %v\n", ch.Name, err)
			os.Exit(1)
		}
		if err := store.SaveTransactions(ctx, ch.Name, txs); err != nil {
			fmt.Fprintf(os.Stderr, "save %s: %v\n", ch.Name, err)
			os.Exit(1)
		}
		fmt.Printf("imported %d %s rows\n", len(txs), ch.Name)
	}
}
