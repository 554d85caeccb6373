// Package unifiederror implements the single boundary that converts any
// raw failure (database, filesystem, validation, ...) into a UnifiedError
// and decides, via internal/fallback, whether the caller can be handed a
// degraded result instead of the error.
package unifiederror

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/maxchen228/linker/internal/fallback"
	"github.com/maxchen228/linker/internal/logger"
)

// Category is the closed error taxonomy.
type Category string

const (
	CategoryDatabase    Category = "database"
	CategoryValidation  Category = "validation"
	CategoryFileIO      Category = "file_io"
	CategoryNetwork     Category = "network"
	CategoryConcurrency Category = "concurrency"
	CategoryBusiness    Category = "business"
	CategorySystem      Category = "system"
	CategoryUnknown     Category = "unknown"
)

// Severity governs log level only; Category drives fallback eligibility.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// UnifiedError is the single error shape every public method surfaces.
type UnifiedError struct {
	Message             string
	Code                string
	Category            Category
	Severity            Severity
	Details             map[string]any
	UserMessage         string
	RecoverySuggestions []string
	Timestamp           time.Time
	CorrelationID       string

	cause error
}

func (e *UnifiedError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is/As reach the original cause.
func (e *UnifiedError) Unwrap() error {
	return e.cause
}

// classification describes how a raw-error kind maps to category/severity
// plus curated user-facing text.
type classification struct {
	category    Category
	severity    Severity
	code        string
	userMessage string
	suggestions []string
}

// sourceErrors are the sentinel kinds repository/dbpool/dailylimit raise;
// this table is the single place that maps them to the taxonomy.
var sourceErrors = []struct {
	is   func(error) bool
	info classification
}{
	{isConnectionLost, classification{CategoryDatabase, SeverityHigh, "connection_lost",
		"We're having trouble reaching the database right now.",
		[]string{"Retry shortly", "Check database connectivity"}}},
	{isNotFound, classification{CategoryBusiness, SeverityLow, "not_found",
		"That knowledge point could not be found.",
		[]string{"Double-check the ID"}}},
	{isFileNotFound, classification{CategoryFileIO, SeverityMedium, "file_not_found",
		"A required file could not be located.",
		[]string{"Verify the configured path exists"}}},
	{isDuplicate, classification{CategoryValidation, SeverityLow, "duplicate",
		"This knowledge point already exists.",
		[]string{"Use the existing entry instead of creating a new one"}}},
	{isForeignKeyViolation, classification{CategoryValidation, SeverityLow, "invalid_reference",
		"One of the referenced records does not exist.",
		[]string{"Check related IDs before retrying"}}},
	{isTimeout, classification{CategoryNetwork, SeverityMedium, "timeout",
		"The operation took too long to complete.",
		[]string{"Retry the request", "Check network/database latency"}}},
	{isValidation, classification{CategoryValidation, SeverityLow, "validation_failed",
		"The supplied data did not pass validation.",
		[]string{"Review the fields you submitted"}}},
	{isConcurrency, classification{CategoryConcurrency, SeverityMedium, "concurrency_conflict",
		"Another operation modified this record concurrently.",
		[]string{"Retry the request"}}},
}

// classify walks the sentinel table above and falls back to Unknown/medium.
func classify(err error) classification {
	for _, s := range sourceErrors {
		if s.is(err) {
			return s.info
		}
	}
	return classification{CategoryUnknown, SeverityMedium, "unknown_error",
		"Something unexpected happened.", []string{"Retry the request"}}
}

// Handler is the single object every repository/service call funnels
// errors through.
type Handler struct {
	log   logger.Logger
	chain *fallback.Chain
}

// New builds a Handler bound to a logger and a fallback chain.
func New(log logger.Logger, chain *fallback.Chain) *Handler {
	return &Handler{log: log, chain: chain}
}

// Classify converts a raw error into a *UnifiedError without consulting the
// fallback chain; used where a caller wants the structured shape for
// reporting but is handling the failure itself (e.g. a denial response).
func Classify(err error, operation string, details map[string]any) *UnifiedError {
	if err == nil {
		return nil
	}
	var existing *UnifiedError
	if errors.As(err, &existing) {
		return existing
	}

	info := classify(err)
	if details == nil {
		details = map[string]any{}
	}
	details["operation"] = operation

	return &UnifiedError{
		Message:             err.Error(),
		Code:                info.code,
		Category:            info.category,
		Severity:            info.severity,
		Details:             details,
		UserMessage:         info.userMessage,
		RecoverySuggestions: info.suggestions,
		Timestamp:           time.Now(),
		CorrelationID:       uuid.NewString(),
		cause:               err,
	}
}

// Handle classifies err, logs it at a severity-appropriate level, and asks
// the fallback chain whether a degraded value can be returned instead. If a
// fallback strategy succeeds, Handle returns (value, true, nil). If no
// strategy handles it, or the category never triggers fallback (Validation
// and Business errors never do), Handle returns (nil, false,
// unifiedErr).
func (h *Handler) Handle(ctx context.Context, err error, op fallback.Operation) (any, bool, error) {
	if err == nil {
		return nil, false, nil
	}

	ue := Classify(err, op.Name, op.Details)
	h.log.Log(severityToLevel(ue.Severity), ue.Message, logger.Fields{
		"operation":      op.Name,
		"category":       string(ue.Category),
		"severity":       string(ue.Severity),
		"correlation_id": ue.CorrelationID,
		"details":        ue.Details,
	})

	if ue.Category == CategoryValidation || ue.Category == CategoryBusiness {
		return nil, false, ue
	}

	if h.chain == nil {
		return nil, false, ue
	}

	value, handled := h.chain.Execute(ctx, fallback.Category(ue.Category), fallback.Severity(ue.Severity), op)
	if !handled {
		return nil, false, ue
	}
	return value, true, nil
}

func severityToLevel(s Severity) logger.Level {
	switch s {
	case SeverityCritical:
		return logger.LevelError
	case SeverityHigh:
		return logger.LevelError
	case SeverityMedium:
		return logger.LevelWarn
	default:
		return logger.LevelInfo
	}
}
