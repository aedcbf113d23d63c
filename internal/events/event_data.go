package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// StateChangedData is emitted after every whole-state write.
type StateChangedData struct {
	Reason         string  `json:"reason"`
	MarketValue    float64 `json:"market_value"`
	ZakatableValue float64 `json:"zakatable_value"`
	Holdings       int     `json:"holdings"`
}

// EventType returns the event type for StateChangedData
func (d *StateChangedData) EventType() EventType {
	return StateChanged
}

// HoldingData describes a holding that was added, updated or removed.
type HoldingData struct {
	Symbol      string    `json:"symbol"`
	Currency    string    `json:"currency,omitempty"`
	Shares      float64   `json:"shares"`
	Price       float64   `json:"price"`
	MarketValue float64   `json:"market_value"`
	Type        EventType `json:"-"`
}

// EventType returns the event type for HoldingData
func (d *HoldingData) EventType() EventType {
	return d.Type
}

// PricesRefreshedData summarizes a batch price refresh.
type PricesRefreshedData struct {
	Currency           string   `json:"currency"`
	Missing            []string `json:"missing,omitempty"`
	Updated            int      `json:"updated"`
	Converted          int      `json:"converted"`
	ConversionFailures int      `json:"conversion_failures"`
}

// EventType returns the event type for PricesRefreshedData
func (d *PricesRefreshedData) EventType() EventType {
	return PricesRefreshed
}

// PassiveUpdatedData describes an accepted or rejected passive investment update.
type PassiveUpdatedData struct {
	Method         string  `json:"method"`
	Reason         string  `json:"reason,omitempty"`
	MarketValue    float64 `json:"market_value"`
	ZakatableValue float64 `json:"zakatable_value"`
	Accepted       bool    `json:"accepted"`
}

// EventType returns the event type for PassiveUpdatedData
func (d *PassiveUpdatedData) EventType() EventType {
	if !d.Accepted {
		return PassiveRejected
	}
	return PassiveUpdated
}

// HawlStatusData is emitted when the Hawl flag flips.
type HawlStatusData struct {
	HawlMet bool `json:"hawl_met"`
}

// EventType returns the event type for HawlStatusData
func (d *HawlStatusData) EventType() EventType {
	return HawlStatusChanged
}

// BackupCompletedData describes an uploaded state backup.
type BackupCompletedData struct {
	Key       string `json:"key"`
	SizeBytes int    `json:"size_bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorData carries an error message for ErrorOccurred events.
type ErrorData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorData
func (d *ErrorData) EventType() EventType {
	return ErrorOccurred
}
