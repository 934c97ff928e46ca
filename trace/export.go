package trace

import (
	"os"
	"sync"

	"github.com/mohitkumar/forge/model"
	"github.com/mohitkumar/forge/util"
)

// Collector receives every recorded event; implementations export the trace
// outside the process.
type Collector interface {
	Collect(event *model.TraceEvent) error
	Close() error
}

var _ Collector = new(LogFileCollector)

// LogFileCollector appends each event as a JSON line to a file.
type LogFileCollector struct {
	mu     sync.Mutex
	file   *os.File
	encDec util.EncoderDecoder[model.TraceEvent]
}

func NewLogFileCollector(fileName string) (*LogFileCollector, error) {
	file, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &LogFileCollector{
		file:   file,
		encDec: util.NewJsonEncoderDecoder[model.TraceEvent](),
	}, nil
}

func (c *LogFileCollector) Collect(event *model.TraceEvent) error {
	data, err := c.encDec.Encode(*event)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.file.Write(data); err != nil {
		return err
	}
	_, err = c.file.Write([]byte("\n"))
	return err
}

func (c *LogFileCollector) Close() error {
	return c.file.Close()
}
