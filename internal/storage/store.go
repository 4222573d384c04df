// Package storage keeps sweep results on disk. Each sweep gets a directory
// holding metadata.json and a tab-separated series.tsv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/ising/internal/dynamo"
	"github.com/san-kum/ising/internal/errs"
)

const (
	metadataFile = "metadata.json"
	seriesFile   = "series.tsv"
)

var seriesHeader = []string{"Temperature", "Energy", "Magnetization"}

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

// RunMetadata describes how a stored series was produced.
type RunMetadata struct {
	ID                  string    `json:"id"`
	Timestamp           time.Time `json:"timestamp"`
	Rows                int       `json:"rows"`
	Cols                int       `json:"cols"`
	Steps               int       `json:"steps"`
	Workers             int       `json:"workers"`
	Seed                int64     `json:"seed"`
	Coupling            float64   `json:"coupling"`
	Boltzmann           float64   `json:"boltzmann"`
	Init                string    `json:"init"`
	Points              int       `json:"points"`
	MinTemperature      float64   `json:"min_temperature"`
	MaxTemperature      float64   `json:"max_temperature"`
	ElapsedSeconds      float64   `json:"elapsed_seconds"`
	CriticalTemperature *float64  `json:"critical_temperature,omitempty"`
}

// Save writes series under a new run directory and returns its id. ID,
// Timestamp, Points and the temperature range are filled in from series.
func (s *Store) Save(meta RunMetadata, series dynamo.Series) (string, error) {
	if err := series.Validate(); err != nil {
		return "", err
	}
	now := s.now()
	meta.ID = fmt.Sprintf("sweep_%d", now.UnixNano())
	meta.Timestamp = now
	meta.Points = len(series)
	if len(series) > 0 {
		meta.MinTemperature = series[0].Temperature
		meta.MaxTemperature = series[len(series)-1].Temperature
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(runDir, seriesFile))
	if err != nil {
		return "", err
	}
	if err := WriteSeriesTSV(f, series); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// runDir resolves a run id to its directory. Ids are single path elements
// that do not start with a dot.
func (s *Store) runDir(runID string) (string, error) {
	if runID == "" || filepath.Base(runID) != runID || strings.HasPrefix(runID, ".") {
		return "", errs.E("storage", "runDir", errs.ErrInvalidParameter, "invalid run id %q", runID)
	}
	return filepath.Join(s.baseDir, runID), nil
}

// UpdateMetadata rewrites the metadata of an existing run.
func (s *Store) UpdateMetadata(meta RunMetadata) error {
	dir, err := s.runDir(meta.ID)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, metadataFile)
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return writeJSON(path, meta)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns stored runs, newest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadSeries(runID string) (dynamo.Series, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(dir, seriesFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSeriesTSV(f)
}

// WriteSeriesTSV writes a header line followed by one row per point.
func WriteSeriesTSV(w io.Writer, series dynamo.Series) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(seriesHeader); err != nil {
		return err
	}
	for _, p := range series {
		row := []string{
			strconv.FormatFloat(p.Temperature, 'g', -1, 64),
			strconv.FormatFloat(p.Energy, 'g', -1, 64),
			strconv.FormatFloat(p.Magnetization, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSeriesTSV parses a tab-separated table with Temperature, Energy and
// Magnetization columns in any order. Extra columns are ignored. Rows are
// sorted by temperature.
func ReadSeriesTSV(r io.Reader) (dynamo.Series, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errs.E("storage", "ReadSeriesTSV", errs.ErrInsufficientData, "empty table")
		}
		return nil, err
	}

	cols := make([]int, len(seriesHeader))
	for i, name := range seriesHeader {
		cols[i] = -1
		for j, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				cols[i] = j
				break
			}
		}
		if cols[i] < 0 {
			return nil, errs.E("storage", "ReadSeriesTSV", errs.ErrInvalidParameter, "missing column %q", name)
		}
	}

	series := make(dynamo.Series, 0)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		var vals [3]float64
		for i, col := range cols {
			if col >= len(record) {
				return nil, errs.E("storage", "ReadSeriesTSV", errs.ErrInvalidParameter, "line %d: missing %s", line, seriesHeader[i])
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				return nil, errs.E("storage", "ReadSeriesTSV", errs.ErrInvalidParameter, "line %d: %s: %v", line, seriesHeader[i], err)
			}
			vals[i] = v
		}
		series = append(series, dynamo.SeriesPoint{Temperature: vals[0], Energy: vals[1], Magnetization: vals[2]})
	}

	sort.Sort(series)
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}
