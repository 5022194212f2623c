package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/mvlc/a2"
	"github.com/sarchlab/mvlc/adapter"
	"github.com/sarchlab/mvlc/daq"
	"github.com/sarchlab/mvlc/dialog"
	"github.com/sarchlab/mvlc/eth"
	"github.com/sarchlab/mvlc/listfile"
	"github.com/sarchlab/mvlc/stream"
	"github.com/sarchlab/mvlc/transport"
	"github.com/sarchlab/mvlc/transport/ethimpl"
)

var (
	host         = flag.String("host", "", "controller hostname or IP literal")
	firstPort    = flag.Int("first-local-port", 49152, "first local UDP port to scan upward from")
	force        = flag.Bool("force", false, "connect even if the controller reports active stack triggers")
	runFor       = flag.Duration("run-for", 5*time.Second, "how long to run before reporting and exiting")
	listfilePath = flag.String("listfile", "", "path to write a raw listfile capture; empty disables recording")
	binCount     = flag.Int("bins", 256, "bin count for the default single-channel histogram")
	binMax       = flag.Float64("max", 65536, "upper edge of the default single-channel histogram")
)

func main() {
	flag.Parse()

	if *host == "" {
		log.Fatal("mvlcctl: -host is required")
	}

	cfg := transport.NewConfig().
		WithHost(*host).
		WithFirstLocalPort(*firstPort).
		WithForce(*force)

	t := ethimpl.New(cfg)
	if err := t.Connect(*force); err != nil {
		log.Fatalf("mvlcctl: connect: %v", err)
	}
	defer t.Disconnect()

	cmdLog := slog.Default()
	d := dialog.New(t, cmdLog)

	var rec *listfile.Writer
	if *listfilePath != "" {
		f, err := os.Create(*listfilePath)
		if err != nil {
			log.Fatalf("mvlcctl: create listfile: %v", err)
		}
		defer f.Close()

		rec, err = listfile.NewWriter(f, listfile.MagicETH)
		if err != nil {
			log.Fatalf("mvlcctl: open listfile writer: %v", err)
		}
		defer rec.Close()
	}

	streamCfg := stream.Config{
		StackToEvent: map[uint8]int{0: 0},
		EventShapes:  [][]stream.ModuleShape{{{PrefixLen: 1, SuffixLen: 0, HasDynamic: false}}},
	}

	histo := a2.NewHistogram1D(a2.Binning{Min: 0, Range: *binMax, BinCount: *binCount})

	graphCfg := adapter.GraphConfig{
		Events: []adapter.EventConfig{
			{
				Nodes: []adapter.NodeConfig{
					{
						ID:          "ext0",
						Kind:        adapter.NodeExtractor,
						ModuleIndex: 0,
						Filter:      a2.NewFilter(1, "DDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDD"),
					},
					{
						ID:           "hist0",
						Kind:         adapter.NodeH1DSink,
						In:           adapter.InputRef{ID: "ext0"},
						Histograms1D: []*a2.Histogram1D{histo},
					},
				},
			},
		},
	}

	monitor := monitoring.NewMonitor()

	reader, packetReader := daq.NewEthFrameReader(t)

	rc, warnings := daq.NewConfig().
		WithDialog(d).
		WithReader(reader).
		WithStreamConfig(streamCfg).
		WithGraphConfig(graphCfg).
		WithLogger(cmdLog).
		WithMonitor(monitor).
		WithListfileRecorder(rec).
		Build()
	for _, w := range warnings {
		cmdLog.Warn("graph build warning", "error", w)
	}

	if err := rc.EnableDAQMode(); err != nil {
		log.Fatalf("mvlcctl: enable DAQ mode: %v", err)
	}

	rc.StartMonitor()

	go func() {
		time.Sleep(*runFor)
		rc.Stop()
	}()

	if err := rc.Run(); err != nil {
		cmdLog.Error("run loop exited with error", "error", err)
	}

	rc.Shutdown(0)

	printReport(rc.Stats(), packetReader.Loss(), histo)

	atexit.Exit(0)
}

func printReport(stats daq.Stats, loss *eth.ChannelLossTracker, histo *a2.Histogram1D) {
	statsTable := table.NewWriter()
	statsTable.SetTitle("Run Summary")
	statsTable.AppendHeader(table.Row{"Metric", "Value"})
	statsTable.AppendRow(table.Row{"Events completed", stats.EventsCompleted})
	statsTable.AppendRow(table.Row{"Parse errors", stats.ParseErrors})
	statsTable.AppendRow(table.Row{"Resyncs", stats.Resyncs})
	statsTable.AppendRow(table.Row{"Unrecovered runs", stats.UnrecoveredRuns})
	statsTable.AppendRow(table.Row{"Readout packets lost", loss.Lost(eth.ChannelReadoutData)})
	os.Stdout.WriteString(statsTable.Render() + "\n")

	histTable := table.NewWriter()
	histTable.SetTitle("Readout Channel Histogram (non-empty bins)")
	histTable.AppendHeader(table.Row{"Bin", "Count"})
	for i, v := range histo.Data {
		if v != 0 {
			histTable.AppendRow(table.Row{i, v})
		}
	}
	histTable.AppendRow(table.Row{"underflow", histo.Underflow})
	histTable.AppendRow(table.Row{"overflow", histo.Overflow})
	os.Stdout.WriteString(histTable.Render() + "\n")
}
