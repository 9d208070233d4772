package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/revolverobotics/gokubi/manager"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Kubi devices",
	Long: `Scan for Kubi devices in the vicinity and list them ranked by signal
strength. Only devices whose advertised name matches the configured prefixes
are shown.`,
	RunE: runScan,
}

var (
	scanFormat   string
	scanDuration time.Duration
)

func init() {
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan window length (default from config)")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if scanDuration > 0 {
		s.cfg.ScanWindowMS = int(scanDuration / time.Millisecond)
	}

	progress := NewProgressPrinter("Scanning for Kubi devices", s.cfg.ScanWindow())
	progress.Start()

	s.run(s.mgr.FindAllKubis)
	ev, err := s.waitEvent(s.cfg.ScanWindow()+5*time.Second, func(ev manager.Event) bool {
		return ev.Kind == manager.EventScanComplete || ev.Kind == manager.EventFailed
	})
	progress.Stop()
	if err != nil {
		return err
	}
	if ev.Kind == manager.EventFailed {
		return failureError(ev.Failure)
	}

	return displayResults(os.Stdout, ev.Results, scanFormat)
}

func displayResults(w io.Writer, results []*manager.SearchResult, format string) error {
	if len(results) == 0 {
		fmt.Fprintln(w, "No Kubi devices discovered")
		return nil
	}

	if format == "json" {
		type jsonResult struct {
			Name    string `json:"name"`
			Address string `json:"address"`
			RSSI    int    `json:"rssi"`
			KubiID  string `json:"kubi_id"`
		}
		out := make([]jsonResult, len(results))
		for i, r := range results {
			out[i] = jsonResult{Name: r.Name(), Address: r.Address(), RSSI: r.RSSI(), KubiID: r.KubiID()}
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tID\tADDRESS\tRSSI")
	fmt.Fprintln(tw, strings.Repeat("-", 60))
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d dBm\n", r.Name(), r.KubiID(), r.Address(), r.RSSI())
	}
	return tw.Flush()
}
