package model

import "time"

// Instrument is one tradable security. Identity is derived from
// (exchange, instrument_token); ID is assigned once and never changes
// across re-imports.
type Instrument struct {
	ID              string    `json:"id"`
	InstrumentToken string    `json:"instrument_token"`
	ExchangeToken   string    `json:"exchange_token"`
	TradingSymbol   string    `json:"tradingsymbol"`
	Name            string    `json:"name,omitempty"`
	LastPrice       float64   `json:"last_price"`
	Expiry          string    `json:"expiry,omitempty"`
	Strike          *float64  `json:"strike,omitempty"`
	TickSize        float64   `json:"tick_size"`
	LotSize         int       `json:"lot_size"`
	InstrumentType  string    `json:"instrument_type"` // EQ, FUT, CE, PE
	Segment         string    `json:"segment"`
	Exchange        string    `json:"exchange"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Key returns the identity key for this instrument: "EXCHANGE:token".
func (i *Instrument) Key() string {
	return i.Exchange + ":" + i.InstrumentToken
}
