/*
Package history keeps a day-scoped record of screening runs so a status check can tell
"nothing matched" from "partially delivered" from "did not run".
*/
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shanehull/twscreener/internal/common"
	"github.com/shanehull/twscreener/internal/pipeline"
)

const (
	historyFileName = "screener_run_history.json"
	historyDirName  = "twscreener"
	maxRunsPerDay   = 100
)

// Record is one entry in the run history.
type Record struct {
	pipeline.RunSummary
	Outcome pipeline.Outcome `json:"outcome"`
	Reason  string           `json:"reason,omitempty"`
}

// NewRecord builds a record for a completed run.
func NewRecord(s pipeline.RunSummary) Record {
	return Record{RunSummary: s, Outcome: s.Outcome()}
}

// NotRun builds a record for a run that was refused before it started.
func NotRun(at time.Time, reason error) Record {
	return Record{
		RunSummary: pipeline.RunSummary{StartedAt: at},
		Outcome:    pipeline.OutcomeNotRun,
		Reason:     reason.Error(),
	}
}

type History struct {
	ReportDate string
	Runs       []Record
}

type Manager struct {
	history         History
	mutex           sync.Mutex
	historyFilePath string
	reportLocation  *time.Location
	logger          *common.Logger
}

// NewManager opens the history file in the system temp directory.
func NewManager(tzName string, logger *common.Logger) (*Manager, error) {
	return NewManagerIn(filepath.Join(os.TempDir(), historyDirName), tzName, logger)
}

// NewManagerIn opens the history file in dir, creating dir if needed.
func NewManagerIn(dir, tzName string, logger *common.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory %s: %w", dir, err)
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone name '%s': %w", tzName, err)
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	m := &Manager{
		historyFilePath: filepath.Join(dir, historyFileName),
		reportLocation:  loc,
		logger:          logger,
	}

	m.loadHistory()
	return m, nil
}

func (m *Manager) loadHistory() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	today := m.getCurrentReportDate()
	m.history = History{ReportDate: today}

	data, err := os.ReadFile(m.historyFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.Debug().Str("path", m.historyFilePath).Msg("history file not found, starting fresh")
			return
		}
		m.logger.Warn().Str("path", m.historyFilePath).Err(err).Msg("failed to read history file, starting fresh")
		return
	}

	var loaded History
	if err := json.Unmarshal(data, &loaded); err != nil {
		m.logger.Warn().Err(err).Msg("failed to unmarshal history, starting fresh")
		return
	}

	if loaded.ReportDate == today {
		m.history = loaded
		m.logger.Debug().Int("runs", len(loaded.Runs)).Str("date", today).Msg("loaded today's run history")
	} else {
		m.logger.Debug().Str("previous", loaded.ReportDate).Str("date", today).Msg("history is stale, starting new day")
	}
}

func (m *Manager) saveHistory() error {
	m.history.ReportDate = m.getCurrentReportDate()

	data, err := json.MarshalIndent(m.history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := os.WriteFile(m.historyFilePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file %s: %w", m.historyFilePath, err)
	}
	return nil
}

// Record appends r to today's history and saves it. Only the latest runs of the day are kept.
func (m *Manager) Record(r Record) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.history.ReportDate != m.getCurrentReportDate() {
		m.history = History{}
	}

	m.history.Runs = append(m.history.Runs, r)
	if over := len(m.history.Runs) - maxRunsPerDay; over > 0 {
		m.history.Runs = m.history.Runs[over:]
	}

	return m.saveHistory()
}

// Last returns the most recent run recorded today.
func (m *Manager) Last() (Record, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if len(m.history.Runs) == 0 {
		return Record{}, false
	}
	return m.history.Runs[len(m.history.Runs)-1], true
}

// Runs returns a copy of today's runs, oldest first.
func (m *Manager) Runs() []Record {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return append([]Record(nil), m.history.Runs...)
}

func (m *Manager) HistoryFilePath() string {
	return m.historyFilePath
}

func (m *Manager) getCurrentReportDate() string {
	return time.Now().In(m.reportLocation).Format("2006-01-02")
}
