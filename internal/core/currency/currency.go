// Package currency は国から通貨コードへの対応付けと為替換算を提供します。
// 外部 API の失敗は呼び出し側に伝播させず、値が得られないこととして扱います。
package currency

import (
	"context"

	"github.com/shopspring/decimal"
)

// Rates は基準通貨 1 単位あたりの各通貨のレートです。キーは大文字の通貨コードです。
type Rates map[string]decimal.Decimal

// CountryFetcher は国名 (name.common) から通貨コードへの対応表を取得します。
type CountryFetcher interface {
	FetchCountries(ctx context.Context) (map[string]string, error)
}

// RateFetcher は基準通貨に対するレート表を取得します。
type RateFetcher interface {
	FetchRates(ctx context.Context, base string) (Rates, error)
}

// RateCache は基準通貨ごとのレート表を有効期限付きで保持します。
type RateCache interface {
	Get(ctx context.Context, base string) (Rates, bool)
	Set(ctx context.Context, base string, rates Rates)
}

// CacheObserver はキャッシュの参照結果を通知します。kind は "countries" か "rates" です。
type CacheObserver interface {
	ObserveCacheLookup(kind string, hit bool)
}
