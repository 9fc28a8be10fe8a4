// Package history keeps a record of finished games.
package history

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dariubs/percent"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Outcomes as stored in a record.
const (
	Won     = "won"
	Lost    = "lost"
	Aborted = "aborted"
)

// Record describes one finished game from the local player's side.
type Record struct {
	ID         string    `yaml:"id"`
	Session    string    `yaml:"session"`
	Role       string    `yaml:"role"`
	Outcome    string    `yaml:"outcome"`
	Reason     string    `yaml:"reason,omitempty"`
	Shots      int       `yaml:"shots"`
	Hits       int       `yaml:"hits"`
	Accuracy   float64   `yaml:"accuracy"`
	StartedAt  time.Time `yaml:"startedAt"`
	FinishedAt time.Time `yaml:"finishedAt"`
}

// NewRecord fills in the id and accuracy of a record.
func NewRecord(session, role, outcome string, shots, hits int, started, finished time.Time) Record {
	return Record{
		ID:         uuid.NewString(),
		Session:    session,
		Role:       role,
		Outcome:    outcome,
		Shots:      shots,
		Hits:       hits,
		Accuracy:   accuracy(hits, shots),
		StartedAt:  started,
		FinishedAt: finished,
	}
}

// Duration returns how long the game lasted.
func (r Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func accuracy(hits, shots int) float64 {
	if shots == 0 {
		return 0
	}
	return percent.PercentOf(hits, shots)
}

// Recorder stores finished games.
type Recorder interface {
	Record(r Record) error
}

type discard struct{}

func (discard) Record(Record) error { return nil }

// Discard drops every record.
var Discard Recorder = discard{}

// FileStore keeps records as a YAML list in a single file.
type FileStore struct {
	path string
	log  *zap.Logger
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on the
// first Record.
func NewFileStore(path string, log *zap.Logger) *FileStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileStore{path: path, log: log}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Record appends r to the file. The file is rewritten through a temporary
// file so a crash never leaves it half written.
func (s *FileStore) Record(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	records = append(records, r)

	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating history directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}

	s.log.Info(fmt.Sprintf("recorded %s game %s", r.Outcome, r.ID), zap.String("path", s.path))
	return nil
}

// Load returns every stored record, oldest first. A missing file holds
// no records.
func (s *FileStore) Load() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	var records []Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing history %s: %w", s.path, err)
	}
	return records, nil
}

// Summary aggregates a list of records.
type Summary struct {
	Games   int
	Wins    int
	Losses  int
	Aborted int

	// WinRate is the percentage of decided games that were won.
	WinRate float64

	// MeanAccuracy averages the accuracy of games with at least one shot.
	MeanAccuracy float64
}

// Summarize computes the totals of records.
func Summarize(records []Record) Summary {
	var s Summary
	var accuracySum float64
	var shooting int
	for _, r := range records {
		s.Games++
		switch r.Outcome {
		case Won:
			s.Wins++
		case Lost:
			s.Losses++
		default:
			s.Aborted++
		}
		if r.Shots > 0 {
			accuracySum += r.Accuracy
			shooting++
		}
	}
	if decided := s.Wins + s.Losses; decided > 0 {
		s.WinRate = percent.PercentOf(s.Wins, decided)
	}
	if shooting > 0 {
		s.MeanAccuracy = accuracySum / float64(shooting)
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d games: %d won, %d lost, %d aborted; win rate %.1f%%, mean accuracy %.1f%%",
		s.Games, s.Wins, s.Losses, s.Aborted, s.WinRate, s.MeanAccuracy)
}
