package log

import (
	"maps"
	"slices"
	"time"
)

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldCategory   = "category"
	FieldSymbol     = "symbol"
	FieldCount      = "count"
	FieldRejected   = "rejected"
	FieldSignal     = "signal"
	FieldCacheHit   = "cache_hit"
	FieldMovementID = "movement_id"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentAnalytics  = "analytics"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentSheets     = "sheets"
	ComponentMarketData = "marketdata"
	ComponentCache      = "cache"
	ComponentTrace      = "trace"
	ComponentBackend    = "backend"
	ComponentImport     = "import"
)

// Operations defines standard operation names
const (
	OpAppend     = "append"
	OpList       = "list"
	OpAggregate  = "aggregate"
	OpIndicators = "indicators"
	OpInvalidate = "invalidate"
	OpPublish    = "publish"
	OpConsume    = "consume"
	OpImport     = "import"
	OpParse      = "parse"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUser adds the ledger owner.
func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithPeriod adds the aggregation selector. Zero month and empty category
// are logged as "all".
func (f LogFields) WithPeriod(year, month int, category string) LogFields {
	f[FieldYear] = year
	if month == 0 {
		f[FieldMonth] = "all"
	} else {
		f[FieldMonth] = month
	}
	if category == "" {
		category = "all"
	}
	f[FieldCategory] = category
	return f
}

// WithSymbol adds a ticker symbol.
func (f LogFields) WithSymbol(symbol string) LogFields {
	f[FieldSymbol] = symbol
	return f
}

// WithDuration adds an elapsed time in milliseconds.
func (f LogFields) WithDuration(d time.Duration) LogFields {
	f[FieldDuration] = d.Milliseconds()
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to key/value pairs for slog, ordered by key.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for _, k := range slices.Sorted(maps.Keys(f)) {
		slice = append(slice, k, f[k])
	}
	return slice
}
