package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wallet-score-lab/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.covalenthq.com/v1"
	DefaultChainID     = 1
	DefaultPageSize    = 10000
	DefaultMaxPages    = 10
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	maxErrorBody = 512
)

// Endpoint names used for metrics.
const (
	endpointTransactions = "transactions_v2"
	endpointDetail       = "transaction_v2"
)

// Client implements Provider against the Covalent v1 REST API.
type Client struct {
	baseURL     string
	apiKey      string
	chainID     int
	pageSize    int
	maxPages    int
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithChainID sets the chain queried.
func WithChainID(id int) ClientOption {
	return func(c *Client) {
		c.chainID = id
	}
}

// WithPageSize sets the transactions page size.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithMaxPages bounds pagination per wallet.
func WithMaxPages(n int) ClientOption {
	return func(c *Client) {
		c.maxPages = n
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new provider client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		chainID:     DefaultChainID,
		pageSize:    DefaultPageSize,
		maxPages:    DefaultMaxPages,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Provider = (*Client)(nil)

// GetTransactions returns all transactions of a wallet, following pagination.
// A history longer than the page limit fails with ErrTruncated.
func (c *Client) GetTransactions(ctx context.Context, wallet string) ([]Transaction, error) {
	path := fmt.Sprintf("/%d/address/%s/transactions_v2/", c.chainID, url.PathEscape(wallet))

	var all []Transaction
	for page := 0; page < c.maxPages; page++ {
		q := url.Values{}
		q.Set("page-size", strconv.Itoa(c.pageSize))
		q.Set("page-number", strconv.Itoa(page))

		var data transactionsData
		if err := c.get(ctx, endpointTransactions, path, q, &data); err != nil {
			return nil, fmt.Errorf("get transactions for %s (page %d): %w", wallet, page, err)
		}
		all = append(all, data.Items...)

		if data.Pagination == nil || !data.Pagination.HasMore {
			return all, nil
		}
	}
	return nil, fmt.Errorf("get transactions for %s: %w: more than %d pages", wallet, ErrTruncated, c.maxPages)
}

// GetTransactionDetail returns the event log of a transaction.
func (c *Client) GetTransactionDetail(ctx context.Context, txHash string) (*TransactionDetail, error) {
	path := fmt.Sprintf("/%d/transaction_v2/%s/", c.chainID, url.PathEscape(txHash))

	var data transactionDetailData
	if err := c.get(ctx, endpointDetail, path, url.Values{}, &data); err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", txHash, err)
	}
	if len(data.Items) == 0 {
		return nil, fmt.Errorf("get transaction %s: %w: no items", txHash, ErrMalformedResponse)
	}

	detail := data.Items[0]
	if detail.TxHash == "" {
		detail.TxHash = txHash
	}
	return &detail, nil
}

// get performs a GET with retries and exponential backoff and decodes the
// envelope's data field into result.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, result interface{}) error {
	query.Set("key", c.apiKey)
	target := c.baseURL + path + "?" + query.Encode()

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			observability.RecordProviderRetry(endpoint)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		body, err := c.do(ctx, endpoint, target)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && !retryable(se.StatusCode) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		return decodeEnvelope(body, result)
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// do executes a single request attempt and returns the body of a 200 response.
func (c *Client) do(ctx context.Context, endpoint, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		observability.RecordProviderRequest(endpoint, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	observability.RecordProviderRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		text := string(body)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: text}
	}
	return body, nil
}

func decodeEnvelope(body []byte, result interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if env.Error {
		apiErr := &APIError{}
		if env.ErrorCode != nil {
			apiErr.Code = *env.ErrorCode
		}
		if env.ErrorMessage != nil {
			apiErr.Message = *env.ErrorMessage
		}
		return apiErr
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
