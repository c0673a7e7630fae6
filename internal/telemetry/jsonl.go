package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JSONLSink appends emitted events to a JSONL file, one record per line.
type JSONLSink struct {
	path string
	log  *zap.Logger
	mu   sync.Mutex
}

func NewJSONLSink(path string, log *zap.Logger) *JSONLSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &JSONLSink{path: path, log: log}
}

type emittedRecord struct {
	Event     string         `json:"event"`
	EmittedAt string         `json:"emitted_at"`
	Fields    map[string]any `json:"fields"`
}

func (s *JSONLSink) Emit(name string, fields map[string]any) {
	record := emittedRecord{
		Event:     name,
		EmittedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Fields:    fields,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.log.Warn("telemetry dir", zap.Error(err))
			return
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.log.Warn("telemetry open", zap.Error(err))
		return
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	line, err := json.Marshal(record)
	if err != nil {
		s.log.Warn("telemetry marshal", zap.Error(err))
		return
	}
	if _, err := writer.Write(line); err != nil {
		s.log.Warn("telemetry write", zap.Error(err))
		return
	}
	if err := writer.WriteByte('\n'); err != nil {
		s.log.Warn("telemetry write", zap.Error(err))
		return
	}
	if err := writer.Flush(); err != nil {
		s.log.Warn("telemetry flush", zap.Error(err))
	}
}
