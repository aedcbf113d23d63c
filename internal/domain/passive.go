package domain

import "time"

// PassiveSchemaVersion is the canonical persisted schema tag.
const PassiveSchemaVersion = "2.0"

// PassiveMethod selects how passive investments are valued.
type PassiveMethod string

const (
	// MethodQuick applies a flat 30% rule to market value.
	MethodQuick PassiveMethod = "quick"
	// MethodDetailed derives the zakatable value from company financials (CRI).
	MethodDetailed PassiveMethod = "detailed"
)

// Valid reports whether m is one of the recognized methods.
func (m PassiveMethod) Valid() bool {
	return m == MethodQuick || m == MethodDetailed
}

// Label is the display label for the method.
func (m PassiveMethod) Label() string {
	if m == MethodDetailed {
		return "CRI Method"
	}
	return "30% Rule"
}

// TotalLabel is the label shown next to the total for the method.
func (m PassiveMethod) TotalLabel() string {
	if m == MethodDetailed {
		return "Total Company Assets"
	}
	return "Total Investments"
}

// Investment is one row of the passive investments list.
type Investment struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Shares        float64 `json:"shares"`
	PricePerShare float64 `json:"pricePerShare"`
	MarketValue   float64 `json:"marketValue"`
}

// CompanyDisplayProperties holds values derived from company data.
type CompanyDisplayProperties struct {
	SharePercentage float64 `json:"sharePercentage"`
}

// CompanyData holds the financials used by the detailed method.
type CompanyData struct {
	DisplayProperties *CompanyDisplayProperties `json:"displayProperties,omitempty"`
	Cash              float64                   `json:"cash"`
	Receivables       float64                   `json:"receivables"`
	Inventory         float64                   `json:"inventory"`
	TotalShares       float64                   `json:"totalShares"`
	YourShares        float64                   `json:"yourShares"`
}

// SharePercentage is yourShares / totalShares x 100, or 0 when totalShares is not positive.
func (c CompanyData) SharePercentage() float64 {
	if c.TotalShares <= 0 {
		return 0
	}
	return c.YourShares / c.TotalShares * 100
}

// HawlStatus tracks whether the qualifying holding period has elapsed.
type HawlStatus struct {
	StartDate  time.Time  `json:"startDate"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	IsComplete bool       `json:"isComplete"`
}

// PassiveDisplayProperties are derived from method and currency. Only Currency is
// ever carried over between writes; the labels are recomputed.
type PassiveDisplayProperties struct {
	Currency   string `json:"currency"`
	Method     string `json:"method"`
	TotalLabel string `json:"totalLabel"`
}

// NewPassiveDisplayProperties derives the display block for a method.
func NewPassiveDisplayProperties(method PassiveMethod, currency string) PassiveDisplayProperties {
	if currency == "" {
		currency = DefaultCurrency
	}
	return PassiveDisplayProperties{
		Currency:   currency,
		Method:     method.Label(),
		TotalLabel: method.TotalLabel(),
	}
}

// PassiveInvestmentState is the canonical (version 2.0) passive investment block.
type PassiveInvestmentState struct {
	HawlStatus        HawlStatus               `json:"hawlStatus"`
	CompanyData       *CompanyData             `json:"companyData,omitempty"`
	Version           string                   `json:"version"`
	Method            PassiveMethod            `json:"method"`
	DisplayProperties PassiveDisplayProperties `json:"displayProperties"`
	Investments       []Investment             `json:"investments"`
	MarketValue       float64                  `json:"marketValue"`
	ZakatableValue    float64                  `json:"zakatableValue"`
}

// Clone returns a deep copy.
func (p PassiveInvestmentState) Clone() PassiveInvestmentState {
	out := p
	if p.Investments != nil {
		out.Investments = make([]Investment, len(p.Investments))
		copy(out.Investments, p.Investments)
	}
	if p.CompanyData != nil {
		cd := *p.CompanyData
		if cd.DisplayProperties != nil {
			dp := *cd.DisplayProperties
			cd.DisplayProperties = &dp
		}
		out.CompanyData = &cd
	}
	if p.HawlStatus.EndDate != nil {
		end := *p.HawlStatus.EndDate
		out.HawlStatus.EndDate = &end
	}
	return out
}

// NewEmptyInvestment returns a blank placeholder row.
func NewEmptyInvestment(id string) Investment {
	return Investment{ID: id}
}

// NewDefaultPassiveState is the passive block a fresh calculator starts with.
func NewDefaultPassiveState(currency string, now time.Time, newID func() string) PassiveInvestmentState {
	return PassiveInvestmentState{
		Version:           PassiveSchemaVersion,
		Method:            MethodQuick,
		Investments:       []Investment{NewEmptyInvestment(newID())},
		HawlStatus:        HawlStatus{IsComplete: false, StartDate: now},
		DisplayProperties: NewPassiveDisplayProperties(MethodQuick, currency),
	}
}
