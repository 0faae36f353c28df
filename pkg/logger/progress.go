package logger

import (
	"fmt"
	"time"
)

// RowProgress reports progress through a batch of source rows. It logs every
// Interval rows instead of on a timer, so output is deterministic for a given
// input.
type RowProgress struct {
	logger    Logger
	operation string
	total     int
	current   int
	interval  int
	startTime time.Time
}

// NewRowProgress creates a tracker for total rows logging every interval rows.
// An interval <= 0 disables intermediate progress lines.
func NewRowProgress(operation string, total, interval int, logger Logger) *RowProgress {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return &RowProgress{
		logger:    logger.WithComponent("progress"),
		operation: operation,
		total:     total,
		interval:  interval,
		startTime: time.Now(),
	}
}

// Increment advances the tracker by one row.
func (p *RowProgress) Increment() {
	p.current++
	if p.interval > 0 && p.current%p.interval == 0 && p.current < p.total {
		p.logger.WithFields(Fields{
			"operation":  p.operation,
			"processed":  p.current,
			"total":      p.total,
			"percentage": fmt.Sprintf("%.1f%%", p.Percentage()),
		}).Debug("Progress update")
	}
}

// Current returns the number of rows processed so far.
func (p *RowProgress) Current() int {
	return p.current
}

// Percentage returns completion in the range 0..100.
func (p *RowProgress) Percentage() float64 {
	if p.total <= 0 {
		return 100
	}
	return float64(p.current) / float64(p.total) * 100
}

// OperationLogger provides structured logging for operations with timing
type OperationLogger struct {
	logger    Logger
	operation string
	fields    Fields
	startTime time.Time
}

// NewOperationLogger creates a new operation logger
func NewOperationLogger(operation string, logger Logger) *OperationLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	ol := &OperationLogger{
		logger:    logger,
		operation: operation,
		fields:    make(Fields),
		startTime: time.Now(),
	}

	ol.logger.WithField("operation", operation).Debug("Starting operation")
	return ol
}

// WithField adds a field to the operation context
func (ol *OperationLogger) WithField(key string, value interface{}) *OperationLogger {
	ol.fields[key] = value
	return ol
}

func (ol *OperationLogger) merged(extra Fields) Fields {
	fields := Fields{"operation": ol.operation}
	for k, v := range ol.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}

// Step logs a step within the operation
func (ol *OperationLogger) Step(step string) {
	ol.logger.WithFields(ol.merged(Fields{"step": step})).Debug("Operation step")
}

// Success completes the operation successfully
func (ol *OperationLogger) Success(message string) {
	ol.logger.WithFields(ol.merged(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "success",
	})).Info(message)
}

// Error completes the operation with an error
func (ol *OperationLogger) Error(err error, message string) {
	ol.logger.WithError(err).WithFields(ol.merged(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "error",
	})).Error(message)
}

// TimedOperation executes a function and logs timing information
func TimedOperation(operation string, logger Logger, fn func() error) error {
	ol := NewOperationLogger(operation, logger)

	err := fn()

	if err != nil {
		ol.Error(err, "Operation failed")
	} else {
		ol.Success("Operation completed successfully")
	}

	return err
}
