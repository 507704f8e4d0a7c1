// Package currencyapi は国情報 API と為替レート API の HTTP クライアントです。
package currencyapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/ogurasousui/codex-expense-approval/internal/core/currency"
)

const maxResponseBytes = 8 << 20

// ErrUnexpectedResponse は API が想定外の応答を返した場合に返却されます。
var ErrUnexpectedResponse = errors.New("currencyapi: unexpected response")

// Config はクライアントの設定です。
type Config struct {
	CountriesURL string
	RatesURL     string
	UserAgent    string
	Timeout      time.Duration
}

// Client は currency.CountryFetcher と currency.RateFetcher を実装します。
type Client struct {
	http         *http.Client
	countriesURL string
	ratesURL     string
	userAgent    string
}

var (
	_ currency.CountryFetcher = (*Client)(nil)
	_ currency.RateFetcher    = (*Client)(nil)
)

// New は Client を生成します。httpClient が nil の場合は Timeout を設定したクライアントを使います。
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		http:         httpClient,
		countriesURL: cfg.CountriesURL,
		ratesURL:     strings.TrimRight(cfg.RatesURL, "/"),
		userAgent:    cfg.UserAgent,
	}
}

// FetchCountries は国の一般名から通貨コードへの対応表を取得します。
// 複数の通貨を持つ国は応答に最初に現れた通貨を採用し、通貨を持たない国は含めません。
func (c *Client) FetchCountries(ctx context.Context) (map[string]string, error) {
	body, err := c.get(ctx, c.countriesURL)
	if err != nil {
		return nil, err
	}

	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%w: countries payload is not an array", ErrUnexpectedResponse)
	}

	out := make(map[string]string)
	doc.ForEach(func(_, country gjson.Result) bool {
		name := strings.TrimSpace(country.Get("name.common").String())
		if name == "" {
			return true
		}
		var code string
		country.Get("currencies").ForEach(func(key, _ gjson.Result) bool {
			code = strings.ToUpper(key.String())
			return false
		})
		if code != "" {
			out[name] = code
		}
		return true
	})
	return out, nil
}

// FetchRates は base 1 単位あたりの各通貨のレートを取得します。
func (c *Client) FetchRates(ctx context.Context, base string) (currency.Rates, error) {
	body, err := c.get(ctx, c.ratesURL+"/"+url.PathEscape(strings.ToUpper(base)))
	if err != nil {
		return nil, err
	}

	rates := gjson.GetBytes(body, "rates")
	if !rates.IsObject() {
		return nil, fmt.Errorf("%w: rates object missing", ErrUnexpectedResponse)
	}

	out := make(currency.Rates)
	var parseErr error
	rates.ForEach(func(key, value gjson.Result) bool {
		d, err := decimal.NewFromString(value.Raw)
		if err != nil {
			parseErr = fmt.Errorf("%w: rate %s: %v", ErrUnexpectedResponse, key.String(), err)
			return false
		}
		out[strings.ToUpper(key.String())] = d
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("currencyapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("currencyapi: GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrUnexpectedResponse, endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("currencyapi: read body: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrUnexpectedResponse)
	}
	return body, nil
}
