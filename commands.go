package models

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewCommand creates a Cobra command tree for the local model lifecycle.
// The returned command should be added to a parent CLI's root command.
//
// Commands provided:
//   - model status
//   - model check [--apply]
//   - model pull
//   - model predict [--now | --day --hour --minute] [--activity --battery] [--vector]
//   - model adapt --csv <file>
//
// Global flags: --json, --quiet, --verbose
func NewCommand(cfg Config, codec Codec, opts ...ManagerOption) *cobra.Command {
	var (
		jsonOutput bool
		quiet      bool
		verbose    bool
	)

	// Manager will be created in PersistentPreRunE
	var mgr Manager
	progress := &progressPrinter{}

	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage the local personalized model",
		Long:  "Check for, download, adapt and query the locally personalized prediction model.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip manager creation for help commands
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			mopts := opts
			if !quiet && !jsonOutput {
				progress.w = cmd.OutOrStdout()
				mopts = append(append([]ManagerOption{}, opts...), WithProgress(progress.update))
			}

			var err error
			mgr, err = NewManager(cfg, codec, mopts...)
			if err != nil {
				return fmt.Errorf("failed to initialize manager: %w", err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Add subcommands
	cmd.AddCommand(statusCmd(&mgr, &jsonOutput))
	cmd.AddCommand(checkCmd(&mgr, progress, &jsonOutput, &quiet))
	cmd.AddCommand(pullCmd(&mgr, progress, &quiet, &verbose))
	cmd.AddCommand(predictCmd(&mgr, &jsonOutput))
	cmd.AddCommand(adaptCmd(&mgr, &quiet))

	return cmd
}

func statusCmd(mgr *Manager, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local and server model state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			type status struct {
				Local       *LocalModelInfo  `json:"local,omitempty"`
				Server      *ServerModelInfo `json:"server,omitempty"`
				ServerError string           `json:"server_error,omitempty"`
			}

			var st status
			local, err := (*mgr).LocalInfo(ctx)
			switch {
			case err == nil:
				st.Local = &local
			case !errors.Is(err, ErrNotInstalled):
				return err
			}

			server, err := (*mgr).ServerInfo(ctx)
			if err != nil {
				st.ServerError = err.Error()
			} else {
				st.Server = &server
			}

			if *jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			return outputStatus(cmd.OutOrStdout(), st.Local, st.Server, st.ServerError)
		},
	}
}

func checkCmd(mgr *Manager, progress *progressPrinter, jsonOutput, quiet *bool) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check for a newer seed model",
		Long:  "Check whether the server has a newer seed model. Use --apply to download it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			needed, checkErr := (*mgr).CheckForUpdates(ctx)

			if *jsonOutput {
				out := struct {
					UpdateAvailable bool   `json:"update_available"`
					Error           string `json:"error,omitempty"`
					Applied         bool   `json:"applied,omitempty"`
				}{UpdateAvailable: needed}
				if checkErr != nil {
					out.Error = checkErr.Error()
				}
				if needed && apply {
					ok, err := (*mgr).DownloadSeedModel(ctx)
					if err != nil {
						out.Error = err.Error()
					}
					out.Applied = ok
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			if checkErr != nil {
				if !*quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "Update check failed: %v\n", checkErr)
				}
				return nil
			}
			if !needed {
				if !*quiet {
					fmt.Fprintln(cmd.OutOrStdout(), "Model is up to date")
				}
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Update available")
			if !apply {
				return nil
			}

			progress.start()
			ok, err := (*mgr).DownloadSeedModel(ctx)
			progress.finish()
			if !ok {
				return err
			}
			if !*quiet {
				fmt.Fprintln(cmd.OutOrStdout(), "Seed model updated")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Download the seed model if an update is available")
	return cmd
}

func pullCmd(mgr *Manager, progress *progressPrinter, quiet, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download the seed model",
		Long:  "Download the seed model from the server, replacing the local model.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			progress.start()
			ok, err := (*mgr).DownloadSeedModel(ctx)
			progress.finish()
			if !ok {
				return err
			}

			if !*quiet {
				fmt.Fprintln(cmd.OutOrStdout(), "Seed model installed")
			}
			if *verbose {
				if info, err := (*mgr).LocalInfo(ctx); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Path:    %s\nSHA-256: %s\n", info.Path, info.SHA256)
				}
			}
			return nil
		},
	}
}

func predictCmd(mgr *Manager, jsonOutput *bool) *cobra.Command {
	var (
		now      bool
		day      float64
		hour     float64
		minute   float64
		activity float64
		battery  float64
		vector   string
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict with the local model",
		Long:  "Predict from named features, the current time (--now), or an ordered --vector.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var features Features
			switch {
			case vector != "":
				v, err := parseVector(vector)
				if err != nil {
					return err
				}
				features = v
			case now:
				features = FeaturesAt(time.Now(), activity, battery)
			default:
				fm := FeatureMap{}
				flags := map[string]float64{
					"day":      day,
					"hour":     hour,
					"minute":   minute,
					"activity": activity,
					"battery":  battery,
				}
				names := map[string]string{
					"day":      FeatureDayOfWeek,
					"hour":     FeatureHourOfDay,
					"minute":   FeatureMinuteOfHour,
					"activity": FeatureActivity,
					"battery":  FeatureBatteryLevel,
				}
				for flag, value := range flags {
					if cmd.Flags().Changed(flag) {
						fm[names[flag]] = value
					}
				}
				features = fm
			}

			label, err := (*mgr).Predict(ctx, features)
			if err != nil {
				if errors.Is(err, ErrModelUnavailable) {
					return fmt.Errorf("%w (run \"pull\" to download the seed model)", err)
				}
				return err
			}

			if *jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				return enc.Encode(map[string]float64{"prediction": label})
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(label, 'g', -1, 64))
			return nil
		},
	}

	cmd.Flags().BoolVar(&now, "now", false, "Derive day, hour and minute from the current time")
	cmd.Flags().Float64Var(&day, "day", 0, "Day of week, 1 (Sunday) to 7")
	cmd.Flags().Float64Var(&hour, "hour", 0, "Hour of day, 0-23")
	cmd.Flags().Float64Var(&minute, "minute", 0, "Minute of hour, 0-59")
	cmd.Flags().Float64Var(&activity, "activity", 0, "Device activity, 0-1")
	cmd.Flags().Float64Var(&battery, "battery", 0, "Device battery level, 0-1")
	cmd.Flags().StringVar(&vector, "vector", "", "Comma-separated ordered feature values")
	cmd.MarkFlagsMutuallyExclusive("now", "vector")
	for _, name := range []string{"day", "hour", "minute", "activity", "battery"} {
		cmd.MarkFlagsMutuallyExclusive("vector", name)
	}
	return cmd
}

func adaptCmd(mgr *Manager, quiet *bool) *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "adapt",
		Short: "Retrain the local model on observations from a CSV file",
		Long: "Retrain the local model on a CSV file with a header row naming the five features " +
			"and a final label column. Each run retrains on that file alone.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(csvPath)
			if err != nil {
				return err
			}
			defer f.Close()

			X, y, err := ReadObservationsCSV(f)
			if err != nil {
				return err
			}

			ok, err := (*mgr).UpdateWithLocalData(ctx, X, y)
			if !ok {
				return err
			}
			if !*quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Model updated with %d observations\n", len(X))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to a CSV file of observations")
	cmd.MarkFlagRequired("csv")
	return cmd
}

// ReadObservationsCSV parses observations from CSV. The header row must name
// every feature in FeatureNames (in any order); the last column is the label.
func ReadObservationsCSV(r io.Reader) ([][]float64, []float64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading header: %v", ErrValidation, err)
	}
	if len(header) < 2 {
		return nil, nil, fmt.Errorf("%w: header needs feature and label columns", ErrValidation)
	}

	index := make(map[string]int, len(header))
	for i, name := range header[:len(header)-1] {
		index[strings.TrimSpace(name)] = i
	}
	cols := make([]int, len(FeatureNames))
	for i, name := range FeatureNames {
		c, ok := index[name]
		if !ok {
			return nil, nil, fmt.Errorf("%w: missing column %q", ErrValidation, name)
		}
		cols[i] = c
	}
	labelCol := len(header) - 1

	var (
		X [][]float64
		y []float64
	)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %v", ErrValidation, line, err)
		}

		row := make([]float64, len(cols))
		for i, c := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: line %d column %q: %v", ErrValidation, line, FeatureNames[i], err)
			}
			row[i] = v
		}
		label, err := strconv.ParseFloat(strings.TrimSpace(rec[labelCol]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d label: %v", ErrValidation, line, err)
		}

		X = append(X, row)
		y = append(y, label)
	}

	return X, y, nil
}

// parseVector parses "a,b,c" into a Vector.
func parseVector(s string) (Vector, error) {
	parts := strings.Split(s, ",")
	v := make(Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vector element %d: %w", i, err)
		}
		v[i] = f
	}
	return v, nil
}

// Output helpers

func outputStatus(w io.Writer, local *LocalModelInfo, server *ServerModelInfo, serverErr string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if local == nil {
		fmt.Fprintln(tw, "Local model:\tnot installed")
	} else {
		loaded := "no"
		if local.Loaded {
			loaded = "yes"
		}
		fmt.Fprintf(tw, "Local model:\t%s\n", local.Path)
		fmt.Fprintf(tw, "Size:\t%s\n", formatSize(local.Size))
		fmt.Fprintf(tw, "Modified:\t%s\n", local.ModifiedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(tw, "SHA-256:\t%s\n", shortHash(local.SHA256))
		fmt.Fprintf(tw, "Loaded:\t%s\n", loaded)
	}

	switch {
	case serverErr != "":
		fmt.Fprintf(tw, "Server:\tunreachable (%s)\n", serverErr)
	case server == nil || server.LatestUpdate == nil:
		fmt.Fprintln(tw, "Server update:\tunknown")
	default:
		sec := *server.LatestUpdate
		ts := time.Unix(int64(sec), int64((sec-float64(int64(sec)))*1e9))
		fmt.Fprintf(tw, "Server update:\t%s\n", ts.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}

// formatSize renders a byte count with binary units, e.g. "1.5 KiB".
func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// progressPrinter renders download progress on a single terminal line.
// It is inert until start is called.
type progressPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	active   bool
	rendered bool
	began    time.Time
	last     time.Time
}

func (p *progressPrinter) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = p.w != nil
	p.rendered = false
	p.began = time.Now()
	p.last = time.Time{}
}

func (p *progressPrinter) update(dp DownloadProgress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}
	// Redraw at most ten times per second, plus the final update.
	if time.Since(p.last) < 100*time.Millisecond && dp.BytesDownloaded != dp.BytesTotal {
		return
	}
	p.last = time.Now()
	p.rendered = true
	renderProgress(p.w, dp.BytesDownloaded, dp.BytesTotal, p.began)
}

func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rendered {
		fmt.Fprintln(p.w)
	}
	p.active = false
}

// renderProgress draws one progress line, overwriting the previous one:
//
//	Downloading [=========>                    ] 33% (1.2 MiB/s, elapsed: 4s)
//
// With an unknown total it shows the byte count instead of a bar.
func renderProgress(w io.Writer, current, total int64, startTime time.Time) {
	elapsed := time.Since(startTime)
	rate := "0 B/s"
	if secs := elapsed.Seconds(); secs > 0 && current > 0 {
		rate = humanize.IBytes(uint64(float64(current)/secs)) + "/s"
	}

	const clearLine = "\r\x1b[K"
	if total <= 0 {
		fmt.Fprintf(w, "%sDownloading %s (%s, elapsed: %s)",
			clearLine, formatSize(current), rate, formatDuration(elapsed))
		return
	}

	const barWidth = 30
	filled := min(int(barWidth*current/total), barWidth)
	bar := []byte(strings.Repeat(" ", barWidth))
	for i := 0; i < filled; i++ {
		bar[i] = '='
	}
	if filled < barWidth {
		bar[filled] = '>'
	}

	fmt.Fprintf(w, "%sDownloading [%s] %d%% (%s, elapsed: %s)",
		clearLine, bar, 100*current/total, rate, formatDuration(elapsed))
}

// formatDuration renders whole seconds as "45s", "2m 30s" or "1h 5m".
func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	h, m, sec := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60

	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	case m > 0 && sec > 0:
		return fmt.Sprintf("%dm %ds", m, sec)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", sec)
}
