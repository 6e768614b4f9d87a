package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mmdatafocus/sales_recon/config"
	"github.com/mmdatafocus/sales_recon/models"
	"github.com/mmdatafocus/sales_recon/sheets"
	"github.com/mmdatafocus/sales_recon/utils"
	"github.com/mmdatafocus/sales_recon/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	workbookPath := flag.String("workbook", "", "Path to the .xlsx workbook (required unless --use-db)")
	channel := flag.String("channel", "", "Required: sales channel (amazon, mercari, ...)")
	configPath := flag.String("config", "", "Optional: channel layout YAML (defaults to the built-in layout)")
	outPath := flag.String("out", "", "Optional: save the workbook here instead of overwriting it")
	transfer := flag.Bool("transfer", false, "Copy sale date and amounts onto the ledger after matching")
	dryRun := flag.Bool("dry-run", false, "Print outcomes without writing anything back")
	useDB := flag.Bool("use-db", false, "Read and write the MySQL tables instead of a workbook")
	flag.Parse()

	if strings.TrimSpace(*channel) == "" {
		fmt.Fprintln(os.Stderr, "--channel is required")
		os.Exit(1)
	}
	if !*useDB && strings.TrimSpace(*workbookPath) == "" {
		fmt.Fprintln(os.Stderr, "--workbook is required unless --use-db is set")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := config.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if os.Getenv("REDIS_ADDRESS") != "" {
		if err := config.ConnectRedis(ctx); err != nil {
			logger.WithFields(logrus.Fields{"field": "reconcile-run"}).Warn("redis not reachable; running without run lock: " + err.Error())
		}
	}

	var stores workflow.Stores
	var wb *sheets.Workbook
	if *useDB {
		if err := config.ConnectDatabase(); err != nil {
			fmt.Fprintf(os.Stderr, "connect database: %v\n", err)
			os.Exit(1)
		}
		store := models.NewGormStore(config.GetDB())
		stores = workflow.Stores{Ledger: store, Transactions: store}
	} else {
		wb, err = sheets.Open(*workbookPath, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		defer wb.Close()
		stores = workflow.Stores{Ledger: wb, Transactions: wb, Fba: wb}
	}

	summary, outcomes, err := workflow.ProcessReconciliationWorkflow(ctx, logger, cfg, stores, workflow.RunRequest{
		Channel:  *channel,
		DryRun:   *dryRun,
		Transfer: *transfer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
		os.Exit(1)
	}

	if wb != nil && !*dryRun {
		if *outPath != "" {
			err = wb.SaveAs(*outPath)
		} else {
			err = wb.Save()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "save workbook: %v\n", err)
			os.Exit(1)
		}
	}

	var report any = summary
	if *dryRun {
		report = struct {
			*workflow.RunSummary
			Outcomes []models.Outcome `json:"outcomes"`
		}{summary, outcomes}
	}
	if err := utils.WriteIndentedJSON(os.Stdout, report); err != nil {
		fmt.Fprintf(os.Stderr, "write summary: %v\n", err)
		os.Exit(1)
	}
}
