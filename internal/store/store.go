package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// Store persists deployment history and relay session logs as JSON files.
type Store struct {
	root string
	mu   sync.Mutex
}

// New creates a Store rooted at the given directory (typically .sideload/).
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the directory the store writes under.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) historyDir() string {
	return filepath.Join(s.root, "history")
}

func (s *Store) logsDir() string {
	return filepath.Join(s.root, "logs")
}

// AddDeploy appends a deploy record.
func (s *Store) AddDeploy(r DeployRecord) error {
	return s.appendRecord("deploys.json", r)
}

// Deploys returns all deploy records, oldest first.
func (s *Store) Deploys() ([]DeployRecord, error) {
	var records []DeployRecord
	err := s.loadRecords("deploys.json", &records)
	return records, err
}

// RecentDeploys returns up to n of the newest deploy records, newest first.
func (s *Store) RecentDeploys(n int) ([]DeployRecord, error) {
	records, err := s.Deploys()
	if err != nil {
		return nil, err
	}
	slices.Reverse(records)
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records, nil
}

// AddRelayLog appends a relay session entry.
func (s *Store) AddRelayLog(r RelayLog) error {
	return s.appendRecord("relay_logs.json", r)
}

// RelayLogs returns all relay session entries.
func (s *Store) RelayLogs() ([]RelayLog, error) {
	var records []RelayLog
	err := s.loadRecords("relay_logs.json", &records)
	return records, err
}

// CreateRelayLog opens a new timestamped file in the logs directory.
func (s *Store) CreateRelayLog(now time.Time) (*os.File, error) {
	dir, err := s.LogsDir()
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("relay-%s.log", now.Format("20060102-150405"))
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// LogsDir returns the path to the logs directory, creating it if needed.
func (s *Store) LogsDir() (string, error) {
	dir := s.logsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (s *Store) appendRecord(filename string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.historyDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, filename)

	var records []json.RawMessage
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("%s is corrupt: %w", path, err)
		}
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	records = append(records, raw)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	// Rename so an interrupted deploy never leaves half a history file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) loadRecords(filename string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.historyDir(), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, dest)
}
