package daq

import (
	"log/slog"
	"sync/atomic"

	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/mvlc/a2"
	"github.com/sarchlab/mvlc/adapter"
	"github.com/sarchlab/mvlc/arena"
	"github.com/sarchlab/mvlc/dialog"
	"github.com/sarchlab/mvlc/frame"
	"github.com/sarchlab/mvlc/listfile"
	"github.com/sarchlab/mvlc/mvlcerr"
	"github.com/sarchlab/mvlc/regs"
	"github.com/sarchlab/mvlc/stream"
)

// Stats is the running counter set a RunController exposes for
// monitoring: completed events and parse error recovery (parse errors,
// resyncs, unrecovered runs). It holds no packet-loss or histogram
// counters.
type Stats struct {
	EventsCompleted uint64
	ParseErrors     uint64
	Resyncs         uint64
	UnrecoveredRuns uint64
}

// RunController orchestrates begin_event/process_module_data/end_event
// across the transport, parser and analysis graph (§4.9). One
// RunController owns a double-buffered pair of arenas: the active one
// backs the currently-running AnalysisGraph, the other is free for
// Rebuild to populate without disturbing the run in progress.
type RunController struct {
	dialog *dialog.CommandDialog
	reader FrameReader
	log    *slog.Logger

	arenas [2]*arena.Arena
	active int
	graph  *a2.AnalysisGraph

	pool      *a2.WorkerPool
	batchSize int

	parser *stream.Parser

	stop atomic.Bool

	stats Stats

	monitor *monitoring.Monitor
	rec     *listfile.Writer
}

// Config chains the parameters a RunController is built from,
// following transport.Config's With... builder convention.
type Config struct {
	dialog       *dialog.CommandDialog
	reader       FrameReader
	streamConfig stream.Config
	graphConfig  adapter.GraphConfig
	segmentSize  int
	pool         *a2.WorkerPool
	batchSize    int
	log          *slog.Logger
	monitor      *monitoring.Monitor
	rec          *listfile.Writer
}

// NewConfig returns a Config with no transport/graph yet attached and a
// batch size of 6. Build accepts any subset of the With... calls; Run
// needs a reader (WithReader), and the other settings are optional.
func NewConfig() Config {
	return Config{batchSize: 6}
}

func (c Config) WithDialog(d *dialog.CommandDialog) Config { c.dialog = d; return c }
func (c Config) WithReader(r FrameReader) Config           { c.reader = r; return c }

func (c Config) WithStreamConfig(sc stream.Config) Config {
	c.streamConfig = sc
	return c
}

func (c Config) WithGraphConfig(gc adapter.GraphConfig) Config {
	c.graphConfig = gc
	return c
}

func (c Config) WithArenaSegmentSize(n int) Config { c.segmentSize = n; return c }
func (c Config) WithWorkerPool(p *a2.WorkerPool) Config {
	c.pool = p
	return c
}
func (c Config) WithBatchSize(n int) Config         { c.batchSize = n; return c }
func (c Config) WithLogger(log *slog.Logger) Config { c.log = log; return c }
func (c Config) WithMonitor(m *monitoring.Monitor) Config {
	c.monitor = m
	return c
}
func (c Config) WithListfileRecorder(w *listfile.Writer) Config { c.rec = w; return c }

// Build allocates the first arena pair, builds the initial
// AnalysisGraph from the configured GraphConfig, and registers an
// atexit cleanup handler (tebeka/atexit) that logs, calls
// FlushHistograms and drains the dialog's stack-error queue; it does
// not close the transport.
func (c Config) Build() (*RunController, []error) {
	rc := &RunController{
		dialog:    c.dialog,
		reader:    c.reader,
		log:       c.log,
		pool:      c.pool,
		batchSize: c.batchSize,
		monitor:   c.monitor,
		rec:       c.rec,
	}
	if rc.log == nil {
		rc.log = slog.Default()
	}

	rc.arenas[0] = arena.New(c.segmentSize)
	rc.arenas[1] = arena.New(c.segmentSize)

	graph, warnings := adapter.Build(c.graphConfig, rc.arenas[1], rc.arenas[0])
	rc.graph = graph
	rc.active = 0

	rc.parser = stream.NewParser(c.streamConfig, rc)

	atexit.Register(func() {
		rc.log.Info("run controller atexit cleanup")
		rc.FlushHistograms()
		if rc.dialog != nil {
			_ = rc.dialog.DrainStackErrors()
		}
	})

	return rc, warnings
}

// Rebuild replaces the running AnalysisGraph: it builds cfg into the
// arena the current graph is NOT using, then swaps, so the run in
// progress keeps referencing valid ParamVec memory from the old arena
// right up until the swap (§3 Arena "double-buffered per analysis
// rebuild").
func (rc *RunController) Rebuild(cfg adapter.GraphConfig) []error {
	next := 1 - rc.active

	rc.arenas[next].Reset()
	graph, warnings := adapter.Build(cfg, rc.arenas[rc.active], rc.arenas[next])

	rc.graph = graph
	rc.active = next

	return warnings
}

// Graph exposes the currently active AnalysisGraph, e.g. for a CLI
// report walking histograms.
func (rc *RunController) Graph() *a2.AnalysisGraph { return rc.graph }

// Stats returns a snapshot of the running counters.
func (rc *RunController) Stats() Stats { return rc.stats }

// StartMonitor starts the monitor's HTTP server, if one was
// configured, exposing the run for external polling. RunController
// does not implement sim.Component or sim.Engine (§5: no
// discrete-event core backs this design, see DESIGN.md), so it
// registers no component with the monitor; starting the server is the
// one grounded use available without that interface.
func (rc *RunController) StartMonitor() {
	if rc.monitor != nil {
		rc.monitor.StartServer()
	}
}

// Stop requests the run loop exit before its next buffer read: Run
// polls the atomic stop flag between reads, not between the events
// inside one buffer.
func (rc *RunController) Stop() { rc.stop.Store(true) }

// Stopped reports whether Stop has been called.
func (rc *RunController) Stopped() bool { return rc.stop.Load() }

// Run drives the hot path until Stop is called or the reader returns a
// non-timeout error: read one buffer, feed the parser, recover via
// Resync on a parse error without aborting the run (§7 "Parsing errors
// increment counters but never abort the run").
func (rc *RunController) Run() error {
	for !rc.stop.Load() {
		words, err := rc.reader.NextWords()
		if err != nil {
			if mvlcerr.Timeout(err) {
				continue
			}
			return err
		}

		rc.feedWithRecovery(words)
	}

	return nil
}

func (rc *RunController) feedWithRecovery(words []uint32) {
	if err := rc.parser.Feed(words); err == nil {
		return
	}

	rc.stats.ParseErrors++
	rc.log.Warn("stream parse error, attempting resync")

	recovered := rc.parser.Resync(words)
	if recovered == nil {
		rc.stats.UnrecoveredRuns++
		return
	}

	rc.stats.Resyncs++
	if err := rc.parser.Feed(recovered); err != nil {
		rc.stats.UnrecoveredRuns++
		rc.log.Warn("resync did not recover the stream", "error", err)
	}
}

// BeginEvent implements stream.Handler.
func (rc *RunController) BeginEvent(eventIndex int) {
	rc.graph.BeginEvent(eventIndex)
}

// ModuleData implements stream.Handler, feeding one module's
// linearized prefix+dynamic+suffix words to its extractor.
func (rc *RunController) ModuleData(eventIndex, moduleIndex int, prefix, dynamic, suffix []uint32) {
	words := make([]uint32, 0, len(prefix)+len(dynamic)+len(suffix))
	words = append(words, prefix...)
	words = append(words, dynamic...)
	words = append(words, suffix...)

	rc.graph.ProcessModuleData(eventIndex, moduleIndex, words)
}

// EndEvent implements stream.Handler: steps the operator pipeline,
// sequentially or across the WorkerPool depending on configuration.
func (rc *RunController) EndEvent(eventIndex int) {
	if rc.pool != nil {
		rc.graph.EndEventParallel(eventIndex, rc.pool, rc.batchSize)
	} else {
		rc.graph.EndEvent(eventIndex)
	}

	rc.stats.EventsCompleted++
}

// SystemEvent implements stream.Handler: logs non-data system events
// and mirrors them into the optional listfile recording.
func (rc *RunController) SystemEvent(se frame.SystemEvent, payload []uint32) {
	switch se.Subtype {
	case frame.SubtypeEndianMarker:
		// already validated at listfile-open time, nothing to do live.
	case frame.SubtypePause, frame.SubtypeResume:
		rc.log.Info("daq system event", "subtype", se.Subtype)
	case frame.SubtypeEndOfFile:
		rc.log.Info("end of file system event observed")
	default:
		rc.log.Debug("system event", "subtype", se.Subtype, "words", len(payload))
	}

	if rc.rec != nil {
		_ = rc.rec.WriteWords(payload)
	}
}

// EnableDAQMode writes DAQModeReg (§6 registers). Per the Open
// Question decision (DESIGN.md): the controller treats DAQ mode as
// always effectively active, so this write is advisory bookkeeping
// sent to hardware, not a local gate — Run never checks it back.
func (rc *RunController) EnableDAQMode() error {
	if rc.dialog == nil {
		return nil
	}

	return rc.dialog.WriteRegister(regs.DAQModeReg, 1)
}

// FlushHistograms is the atexit hook point for histograms; it only
// logs the completed event count at Debug level and does not walk,
// clear or persist any histogram (histograms are long-lived, see §3
// Lifecycle).
func (rc *RunController) FlushHistograms() {
	rc.log.Debug("histogram flush", "eventsCompleted", rc.stats.EventsCompleted)
}

// Shutdown stops accepting new work and joins the WorkerPool's workers
// if one is configured. It does not disconnect the transport.
func (rc *RunController) Shutdown(numWorkers int) {
	rc.Stop()

	if rc.pool != nil {
		rc.pool.Shutdown(numWorkers)
	}
}
