package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// Incident lifecycle events
	LogIncidentCreated(ctx context.Context, incidentID, severity string) error
	LogIncidentResolved(ctx context.Context, incidentID string) error
	LogPostmortemGenerated(ctx context.Context, incidentID string, actionItems int, duration time.Duration) error
	LogIncidentIndexed(ctx context.Context, incidentID string) error
	LogIndexFailed(ctx context.Context, incidentID string, err error) error

	// Stage events
	LogStageCompleted(ctx context.Context, incidentID, stage string, duration time.Duration) error
	LogStageFailed(ctx context.Context, incidentID, stage string, err error) error

	// Side-channel events
	LogNotificationSent(ctx context.Context, incidentID, channel string) error
	LogNotificationFailed(ctx context.Context, incidentID, channel string, err error) error
	LogTicketCreated(ctx context.Context, incidentID, ticketID string) error
	LogTicketFailed(ctx context.Context, incidentID string, err error) error

	// Sync flushes buffered log entries
	Sync() error

	// Close closes the audit logger
	Close() error
}

// Config represents audit logger configuration
type Config struct {
	// AuditLogPath is the path to the audit log file
	AuditLogPath string

	// AppLogPath is the path to the application log file
	AppLogPath string

	// MaxSize is the maximum size in megabytes before rotation
	MaxSize int

	// MaxBackups is the maximum number of old log files to retain
	MaxBackups int

	// MaxAge is the maximum number of days to retain old log files
	MaxAge int

	// Compress determines if rotated files should be compressed
	Compress bool

	// LogLevel is the minimum log level (debug, info, warn, error)
	LogLevel string
}

// DefaultConfig returns default audit logger configuration
func DefaultConfig() *Config {
	return &Config{
		AuditLogPath: "logs/audit.log",
		AppLogPath:   "logs/app.log",
		MaxSize:      100, // megabytes
		MaxBackups:   10,
		MaxAge:       30, // days
		Compress:     true,
		LogLevel:     "info",
	}
}

// auditLogger implements the Logger interface
type auditLogger struct {
	appLogger   *zap.Logger
	auditLogger *zap.Logger
	config      *Config
	mu          sync.Mutex
	buffer      []*Event
	flushTicker *time.Ticker
	stopCh      chan struct{}
}

// NewLogger creates a new audit logger
func NewLogger(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := zapcore.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", config.LogLevel, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	appRotator := &lumberjack.Logger{
		Filename:   config.AppLogPath,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}

	appCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(appRotator),
		level,
	)

	appLogger := zap.New(appCore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	// Audit log is append-only and always INFO level
	auditRotator := &lumberjack.Logger{
		Filename:   config.AuditLogPath,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}

	auditCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(auditRotator),
		zapcore.InfoLevel,
	)

	auditZapLogger := zap.New(auditCore)

	logger := &auditLogger{
		appLogger:   appLogger,
		auditLogger: auditZapLogger,
		config:      config,
		buffer:      make([]*Event, 0, 100),
		flushTicker: time.NewTicker(1 * time.Second),
		stopCh:      make(chan struct{}),
	}

	go logger.autoFlush()

	return logger, nil
}

// Log logs an audit event
func (l *auditLogger) Log(ctx context.Context, event *Event) error {
	if event.CorrelationID == "" {
		event.CorrelationID = GetCorrelationID(ctx)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer = append(l.buffer, event)

	if len(l.buffer) >= 100 {
		return l.flushLocked()
	}
	return nil
}

// flushLocked flushes the buffer (caller must hold lock)
func (l *auditLogger) flushLocked() error {
	if len(l.buffer) == 0 {
		return nil
	}

	for _, event := range l.buffer {
		eventJSON, err := json.Marshal(event)
		if err != nil {
			l.appLogger.Error("failed to marshal audit event",
				zap.Error(err),
				zap.String("event_type", string(event.EventType)),
			)
			continue
		}

		l.auditLogger.Info(string(eventJSON),
			zap.String("correlation_id", event.CorrelationID),
			zap.String("event_type", string(event.EventType)),
			zap.String("result", string(event.Result)),
		)
	}

	l.buffer = l.buffer[:0]
	return nil
}

// autoFlush periodically flushes the buffer
func (l *auditLogger) autoFlush() {
	for {
		select {
		case <-l.flushTicker.C:
			l.mu.Lock()
			_ = l.flushLocked()
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

func (l *auditLogger) LogIncidentCreated(ctx context.Context, incidentID, severity string) error {
	event := NewEvent(EventIncidentCreated).
		WithIncident(incidentID).
		WithSeverity(severity).
		WithResult(ResultSuccess).
		WithDescription(fmt.Sprintf("Incident %s created at %s", incidentID, severity))
	return l.Log(ctx, event)
}

func (l *auditLogger) LogIncidentResolved(ctx context.Context, incidentID string) error {
	event := NewEvent(EventIncidentResolved).
		WithIncident(incidentID).
		WithResult(ResultSuccess).
		WithDescription(fmt.Sprintf("Incident %s resolved", incidentID))
	return l.Log(ctx, event)
}

func (l *auditLogger) LogPostmortemGenerated(ctx context.Context, incidentID string, actionItems int, duration time.Duration) error {
	event := NewEvent(EventPostmortemGenerated).
		WithIncident(incidentID).
		WithResult(ResultSuccess).
		WithDuration(duration).
		WithMetadata("action_items", actionItems).
		WithDescription(fmt.Sprintf("Postmortem generated for %s", incidentID))
	return l.Log(ctx, event)
}

func (l *auditLogger) LogIncidentIndexed(ctx context.Context, incidentID string) error {
	event := NewEvent(EventIncidentIndexed).
		WithIncident(incidentID).
		WithResult(ResultSuccess).
		WithDescription(fmt.Sprintf("Incident %s indexed into knowledge base", incidentID))
	return l.Log(ctx, event)
}

func (l *auditLogger) LogIndexFailed(ctx context.Context, incidentID string, err error) error {
	event := NewEvent(EventIncidentIndexFailed).
		WithIncident(incidentID).
		WithError(err, "index_error").
		WithDescription(fmt.Sprintf("Indexing failed for %s", incidentID))
	return l.Log(ctx, event)
}

func (l *auditLogger) LogStageCompleted(ctx context.Context, incidentID, stage string, duration time.Duration) error {
	event := NewEvent(EventStageCompleted).
		WithIncident(incidentID).
		WithStage(stage).
		WithResult(ResultSuccess).
		WithDuration(duration).
		WithDescription(fmt.Sprintf("Stage %s completed for %s", stage, incidentID))
	return l.Log(ctx, event)
}

func (l *auditLogger) LogStageFailed(ctx context.Context, incidentID, stage string, err error) error {
	event := NewEvent(EventStageFailed).
		WithIncident(incidentID).
		WithStage(stage).
		WithError(err, "stage_error").
		WithDescription(fmt.Sprintf("Stage %s failed for %s", stage, incidentID))
	return l.Log(ctx, event)
}

func (l *auditLogger) LogNotificationSent(ctx context.Context, incidentID, channel string) error {
	event := NewEvent(EventNotificationSent).
		WithIncident(incidentID).
		WithResult(ResultSuccess).
		WithMetadata("channel", channel).
		WithDescription(fmt.Sprintf("Notification sent for %s via %s", incidentID, channel))
	return l.Log(ctx, event)
}

func (l *auditLogger) LogNotificationFailed(ctx context.Context, incidentID, channel string, err error) error {
	event := NewEvent(EventNotificationFailed).
		WithIncident(incidentID).
		WithError(err, "notification_error").
		WithMetadata("channel", channel).
		WithDescription(fmt.Sprintf("Notification failed for %s via %s", incidentID, channel))
	return l.Log(ctx, event)
}

func (l *auditLogger) LogTicketCreated(ctx context.Context, incidentID, ticketID string) error {
	event := NewEvent(EventTicketCreated).
		WithIncident(incidentID).
		WithResult(ResultSuccess).
		WithMetadata("ticket_id", ticketID).
		WithDescription(fmt.Sprintf("Ticket %s created for %s", ticketID, incidentID))
	return l.Log(ctx, event)
}

func (l *auditLogger) LogTicketFailed(ctx context.Context, incidentID string, err error) error {
	event := NewEvent(EventTicketFailed).
		WithIncident(incidentID).
		WithError(err, "ticket_error").
		WithDescription(fmt.Sprintf("Ticket creation failed for %s", incidentID))
	return l.Log(ctx, event)
}

// Sync flushes buffered log entries
func (l *auditLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.flushLocked(); err != nil {
		return err
	}
	if err := l.auditLogger.Sync(); err != nil {
		return err
	}
	return l.appLogger.Sync()
}

// Close closes the audit logger
func (l *auditLogger) Close() error {
	close(l.stopCh)
	l.flushTicker.Stop()
	return l.Sync()
}

type correlationIDKey struct{}

// GetCorrelationID extracts correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID adds correlation ID to context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// GenerateCorrelationID generates a new correlation ID
func GenerateCorrelationID() string {
	return uuid.NewString()
}
