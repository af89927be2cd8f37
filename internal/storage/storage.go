// Package storage keeps a short per-channel history of executed commands in a
// JSON file backed datastore.
package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/keshon/datastore"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const commandHistoryLimit int = 20

type Storage struct {
	// mu serializes read-modify-write of channel records.
	mu sync.Mutex
	ds *datastore.DataStore
}

type CommandHistoryRecord struct {
	Channel  string    `json:"channel"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Command  string    `json:"command"`
	Args     string    `json:"args"`
	Failed   bool      `json:"failed,omitempty"`
	Datetime time.Time `json:"datetime"`
}

type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, fmt.Errorf("open datastore %s: %w", filePath, err)
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func channelKey(channel string) string {
	return "channel:" + strings.ToLower(strings.TrimPrefix(channel, "#"))
}

// getChannelRecord returns a private copy of the channel's record, or an
// empty one. Values handed to the datastore are never mutated afterwards.
func (s *Storage) getChannelRecord(channel string) (*Record, error) {
	data, exists := s.ds.Get(channelKey(channel))
	if !exists {
		return &Record{CommandsHistoryList: []CommandHistoryRecord{}}, nil
	}

	// Values come back either as the stored struct or as decoded JSON after a reload.
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}

	var record Record
	if err := json.Unmarshal(jsonData, &record); err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}

	if record.CommandsHistoryList == nil {
		record.CommandsHistoryList = []CommandHistoryRecord{}
	}
	return &record, nil
}

// AppendCommandToHistory appends a command history record for a channel,
// keeping only the most recent entries.
func (s *Storage) AppendCommandToHistory(channel string, command CommandHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getChannelRecord(channel)
	if err != nil {
		return err
	}

	record.CommandsHistoryList = append(record.CommandsHistoryList, command)
	if len(record.CommandsHistoryList) > commandHistoryLimit {
		record.CommandsHistoryList = record.CommandsHistoryList[len(record.CommandsHistoryList)-commandHistoryLimit:]
	}
	s.ds.Add(channelKey(channel), record)
	return nil
}

// FetchCommandHistory returns the recorded commands for a channel, oldest first.
func (s *Storage) FetchCommandHistory(channel string) ([]CommandHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getChannelRecord(channel)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistoryList, nil
}
