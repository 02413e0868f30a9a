package log

// Field names shared by every component that logs receipt activity.
const (
	FieldComponent = "component"
	FieldClientIP  = "client_ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldReceiptID = "receipt_id"
	FieldStore     = "store"
	FieldItemCount = "item_count"
	FieldHomeTotal = "home_total"
	FieldSheetsRef = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentReceipt = "receipt"
	ComponentWorker  = "worker"
)

// Operations defines standard operation names
const (
	OpAppend = "append"
	OpSync   = "sync"
	OpImport = "import"
	OpExport = "export"
	OpReset  = "reset"
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

// WithReceipt adds receipt-related fields
func (f LogFields) WithReceipt(id, store string, itemCount int, homeTotal float64) LogFields {
	f[FieldReceiptID] = id
	f[FieldStore] = store
	f[FieldItemCount] = itemCount
	f[FieldHomeTotal] = homeTotal
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
