package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/andresuchdata/autodrp/backend-go/internal/pipeline"
	"github.com/urfave/cli/v2"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(c *cli.Context, r *domain.AllocationResult) error {
	out := c.App.Writer
	if c.Bool("json") {
		return printJSON(out, r)
	}

	fmt.Fprintf(out, "product %s from %s (%s, multiple %d)\n", r.ProductID, r.SourceBranchID, r.Mode, r.SaleMultiple)
	fmt.Fprintf(out, "available %d  need %d  shipped %d  deficit %d  unallocated %d\n\n",
		r.SourceAvailable, r.TotalNeed, r.TotalShipped, r.TotalDeficit, r.Unallocated)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BRANCH\tSTOCK\tGROUP\tTARGET\tNEED\tSHIP\tSTATUS\tBASIS\tCONFIDENCE\tAVG/DAY\tPEAK")
	for _, d := range r.Destinations {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%s\t%.2f\t%t\n",
			d.BranchID, d.CurrentStock, d.GroupStock, d.TargetLevel, d.Need, d.SuggestedShipment,
			domain.StatusLabel(d.Status), d.Basis, d.Confidence, d.AdjustedDailyAverage, d.HasPeak)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.DeficitSuggestions) > 0 {
		fmt.Fprintln(out, "\nsubstitutes available at source:")
		for _, s := range r.DeficitSuggestions {
			fmt.Fprintf(out, "  %s %s %q: %d\n", s.ProductID, s.Code, s.Description, s.AvailableStock)
		}
	}
	return nil
}

func printProfiles(c *cli.Context, profiles []*domain.DemandProfile) error {
	out := c.App.Writer
	if c.Bool("json") {
		return printJSON(out, profiles)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BRANCH\tWINDOW\tTOTAL\tAVG/DAY\tADJ AVG\tSTDDEV\tCV\tCONFIDENCE\tPEAK")
	for _, p := range profiles {
		cv := "-"
		if p.CV != nil {
			cv = fmt.Sprintf("%.1f%%", *p.CV*100)
		}
		fmt.Fprintf(tw, "%s\t%d\t%.0f\t%.2f\t%.2f\t%.2f\t%s\t%s\t%t\n",
			p.BranchID, p.WindowDays, p.TotalSales, p.DailyAverage, p.AdjustedDailyAverage, p.StdDev, cv, p.Confidence, p.HasPeak)
	}
	return tw.Flush()
}

func printRun(c *cli.Context, run *pipeline.Run) error {
	out := c.App.Writer
	if c.Bool("json") {
		return printJSON(out, run)
	}

	fmt.Fprintf(out, "run %d %s: %d/%d processed, %d succeeded, %d failed\n",
		run.ID, run.Status, run.Processed, run.Total, run.Succeeded, run.Failed)
	if run.ReportPath != "" {
		fmt.Fprintf(out, "report: %s\n", run.ReportPath)
	}
	for _, f := range run.Failures {
		fmt.Fprintf(out, "  failed %s@%s: %s\n", f.ProductID, f.BranchID, f.Error)
	}
	return nil
}
