package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TransactionSource lists a wallet's transactions.
type TransactionSource interface {
	GetTransactions(ctx context.Context, wallet string) ([]Transaction, error)
}

// DetailSource fetches the event log of a single transaction.
type DetailSource interface {
	GetTransactionDetail(ctx context.Context, txHash string) (*TransactionDetail, error)
}

// Provider is the full data provider surface used by the pipeline.
type Provider interface {
	TransactionSource
	DetailSource
}

// Decoded is the decoded call or event carried by a transaction or log entry.
type Decoded struct {
	Name      string `json:"name"`
	Signature string `json:"signature,omitempty"`
}

// Transaction is one item of a wallet's transaction list.
type Transaction struct {
	TxHash         string    `json:"tx_hash"`
	BlockSignedAt  time.Time `json:"block_signed_at"`
	FromAddress    string    `json:"from_address"`
	ToAddress      *string   `json:"to_address"`       // nil for contract creation
	ToAddressLabel *string   `json:"to_address_label"` // nil when provider has no label
	Decoded        *Decoded  `json:"decoded"`
	Value          Amount    `json:"value"`
}

// To returns the destination address or "".
func (t *Transaction) To() string {
	if t.ToAddress == nil {
		return ""
	}
	return *t.ToAddress
}

// Label returns the destination label or "".
func (t *Transaction) Label() string {
	if t.ToAddressLabel == nil {
		return ""
	}
	return *t.ToAddressLabel
}

// DecodedName returns the decoded call name or "".
func (t *Transaction) DecodedName() string {
	if t.Decoded == nil {
		return ""
	}
	return t.Decoded.Name
}

// LogEvent is one entry of a transaction's event log.
type LogEvent struct {
	LogOffset     int      `json:"log_offset"`
	SenderAddress string   `json:"sender_address"`
	Decoded       *Decoded `json:"decoded"`
}

// DecodedName returns the decoded event name or "".
func (e *LogEvent) DecodedName() string {
	if e.Decoded == nil {
		return ""
	}
	return e.Decoded.Name
}

// TransactionDetail holds the event log of a transaction.
type TransactionDetail struct {
	TxHash    string     `json:"tx_hash"`
	LogEvents []LogEvent `json:"log_events"`
}

// Amount is a decimal amount that the provider may encode as a JSON string or number.
// The raw text is kept; parsing is left to the aggregation stage.
type Amount string

// UnmarshalJSON accepts "123", 123 and null.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return fmt.Errorf("decode amount: %w", err)
		}
		*a = Amount(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode amount: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

// String returns the raw amount.
func (a Amount) String() string {
	return string(a)
}

// envelope is the common Covalent response wrapper.
type envelope struct {
	Data         json.RawMessage `json:"data"`
	Error        bool            `json:"error"`
	ErrorMessage *string         `json:"error_message"`
	ErrorCode    *int            `json:"error_code"`
}

type pagination struct {
	HasMore    bool `json:"has_more"`
	PageNumber int  `json:"page_number"`
	PageSize   int  `json:"page_size"`
}

type transactionsData struct {
	Address    string        `json:"address"`
	Items      []Transaction `json:"items"`
	Pagination *pagination   `json:"pagination"`
}

type transactionDetailData struct {
	Items []TransactionDetail `json:"items"`
}
