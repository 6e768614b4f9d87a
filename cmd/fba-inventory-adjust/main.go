package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/sales_recon/config"
	"github.com/mmdatafocus/sales_recon/sheets"
	"github.com/mmdatafocus/sales_recon/utils"
	"github.com/mmdatafocus/sales_recon/workflow"
)

func main() {
	workbookPath := flag.String("workbook", "", "Required: path to the .xlsx workbook")
	configPath := flag.String("config", "", "Optional: layout YAML (defaults to the built-in layout)")
	outPath := flag.String("out", "", "Optional: save the workbook here instead of overwriting it")
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
	wb, err := sheets.Open(*workbookPath, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer wb.Close()

	summary, err := workflow.ProcessFbaInventoryAdjustment(context.Background(), config.GetLogger(), workflow.Stores{Ledger: wb, Fba: wb})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fba inventory adjustment failed: %v\n", err)
		os.Exit(1)
	}
	if *outPath != "" {
		err = wb.SaveAs(*outPath)
	} else {
		err = wb.Save()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "save workbook: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("FBA在庫調整が完了しました。処理SKU数: %d件 成功: %d件 エラー: %d件 スキップ: %d件\n",
		summary.Total, summary.Succeeded, summary.Failed, summary.Skipped)
	_ = utils.WriteIndentedJSON(os.Stdout, summary)
}
