package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pthm-cable/tracer/config"
)

// OutputManager handles run output: window statistics, performance and the
// resolved configuration.
type OutputManager struct {
	dir        string
	rank       int
	windowFile *os.File
	perfFile   *os.File

	// Track if headers have been written
	windowHeaderWritten bool
	perfHeaderWritten   bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled). Files are suffixed by rank.
func NewOutputManager(dir string, rank int) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir, rank: rank}

	windowPath := filepath.Join(dir, fmt.Sprintf("windows_rank%d.csv", rank))
	f, err := os.Create(windowPath)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Base(windowPath), err)
	}
	om.windowFile = f

	perfPath := filepath.Join(dir, fmt.Sprintf("perf_rank%d.csv", rank))
	f, err = os.Create(perfPath)
	if err != nil {
		om.windowFile.Close()
		return nil, fmt.Errorf("creating %s: %w", filepath.Base(perfPath), err)
	}
	om.perfFile = f

	return om, nil
}

// WriteConfig saves the configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteWindow appends a window stats record.
func (om *OutputManager) WriteWindow(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := writeCSV(om.windowFile, []WindowStats{stats}, &om.windowHeaderWritten); err != nil {
		return fmt.Errorf("writing window stats: %w", err)
	}
	return nil
}

// WritePerf appends a performance stats record.
func (om *OutputManager) WritePerf(stats PerfStats, window int) error {
	if om == nil {
		return nil
	}
	if err := writeCSV(om.perfFile, []PerfStatsCSV{stats.ToCSV(window)}, &om.perfHeaderWritten); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.windowFile, om.perfFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ParticleRow is one emitted particle in the particle file.
type ParticleRow struct {
	Window          int     `csv:"window"`
	Rank            int     `csv:"rank"`
	ID              int64   `csv:"particle_id"`
	SourceID        int     `csv:"source_id"`
	InjectedPointID int     `csv:"injected_point_id"`
	InjectedStepID  int     `csv:"injected_step_id"`
	X               float64 `csv:"x"`
	Y               float64 `csv:"y"`
	Z               float64 `csv:"z"`
	T               float64 `csv:"t"`
	State           string  `csv:"state"`
	ErrorCode       int     `csv:"error_code"`
	Age             float64 `csv:"age"`
	TimeStepAge     int     `csv:"time_step_age"`
	Speed           float64 `csv:"speed"`
	VX              float64 `csv:"vx"`
	VY              float64 `csv:"vy"`
	VZ              float64 `csv:"vz"`
	Vorticity       float64 `csv:"vorticity"`
	Rotation        float64 `csv:"rotation"`
	AngularVelocity float64 `csv:"angular_velocity"`
}

// ParticleWriter appends particle rows to one CSV file per rank.
// A nil writer discards rows.
type ParticleWriter struct {
	file          *os.File
	headerWritten bool
	rows          int
}

// NewParticleWriter creates particles_rank<rank>.csv in dir.
// Returns nil if dir is empty.
func NewParticleWriter(dir string, rank int) (*ParticleWriter, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("particles_rank%d.csv", rank))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	return &ParticleWriter{file: f}, nil
}

// Write appends rows. The header is written with the first non-empty batch.
func (pw *ParticleWriter) Write(rows []ParticleRow) error {
	if pw == nil || len(rows) == 0 {
		return nil
	}
	if err := writeCSV(pw.file, rows, &pw.headerWritten); err != nil {
		return fmt.Errorf("writing particles: %w", err)
	}
	pw.rows += len(rows)
	return nil
}

// Rows returns the number of rows written so far.
func (pw *ParticleWriter) Rows() int {
	if pw == nil {
		return 0
	}
	return pw.rows
}

// Close closes the particle file.
func (pw *ParticleWriter) Close() error {
	if pw == nil {
		return nil
	}
	return pw.file.Close()
}

// writeCSV writes records with a header on first use.
func writeCSV(f *os.File, records any, headerWritten *bool) error {
	if !*headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	// Subsequent writes skip headers
	return gocsv.MarshalWithoutHeaders(records, f)
}
