package currency

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const countriesKey = "countries"

// Service は通貨に関する問い合わせを提供します。
type Service struct {
	countries CountryFetcher
	rates     RateFetcher
	cache     RateCache
	observer  CacheObserver
	logger    *zap.Logger

	group singleflight.Group

	mu           sync.RWMutex
	countryTable map[string]string
	foldedIndex  map[string]string
}

// Option は Service の任意設定です。
type Option func(*Service)

// WithRateCache はレートキャッシュを差し替えます。
func WithRateCache(cache RateCache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithObserver はキャッシュ参照結果の通知先を設定します。
func WithObserver(o CacheObserver) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// WithLogger はロガーを設定します。
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService は Service を生成します。既定のレートキャッシュは 10 分間有効なメモリキャッシュです。
func NewService(countries CountryFetcher, rates RateFetcher, opts ...Option) *Service {
	s := &Service{
		countries: countries,
		rates:     rates,
		cache:     NewMemoryRateCache(DefaultRateTTL, nil),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CountryCurrency は国名に対応する通貨コードを返します。完全一致を優先し、次に大文字小文字を無視して照合します。
func (s *Service) CountryCurrency(ctx context.Context, country string) (string, bool) {
	name := strings.TrimSpace(country)
	if name == "" {
		return "", false
	}

	table, folded, ok := s.countryTables(ctx)
	if !ok {
		return "", false
	}

	if code, ok := table[name]; ok {
		return code, true
	}
	code, ok := folded[strings.ToLower(name)]
	return code, ok
}

// Countries は既知の国名を昇順で返します。対応表が取得できない場合は空です。
func (s *Service) Countries(ctx context.Context) []string {
	table, _, ok := s.countryTables(ctx)
	if !ok {
		return []string{}
	}
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Convert は amount を from から to に換算します。通貨コードが同じ場合は外部 API を呼ばずにそのまま返します。
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, bool) {
	src := strings.ToUpper(strings.TrimSpace(from))
	dst := strings.ToUpper(strings.TrimSpace(to))
	if src == "" || dst == "" {
		return decimal.Decimal{}, false
	}
	if src == dst {
		return amount, true
	}

	rates, ok := s.ratesFor(ctx, src)
	if !ok {
		return decimal.Decimal{}, false
	}
	rate, ok := rates[dst]
	if !ok {
		return decimal.Decimal{}, false
	}
	return amount.Mul(rate), true
}

func (s *Service) countryTables(ctx context.Context) (map[string]string, map[string]string, bool) {
	s.mu.RLock()
	table, folded := s.countryTable, s.foldedIndex
	s.mu.RUnlock()
	if table != nil {
		s.observe(countriesKey, true)
		return table, folded, true
	}
	s.observe(countriesKey, false)

	if s.countries == nil {
		return nil, nil, false
	}

	// 共有される取得は最初の呼び出し元のキャンセルに引きずられない。
	fetchCtx := context.WithoutCancel(ctx)
	_, err, _ := s.group.Do(countriesKey, func() (any, error) {
		fetched, err := s.countries.FetchCountries(fetchCtx)
		if err != nil {
			return nil, err
		}
		index := make(map[string]string, len(fetched))
		for name, code := range fetched {
			index[strings.ToLower(name)] = code
		}
		s.mu.Lock()
		s.countryTable, s.foldedIndex = fetched, index
		s.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		s.logger.Warn("country currency table unavailable", zap.Error(err))
		return nil, nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countryTable, s.foldedIndex, s.countryTable != nil
}

func (s *Service) ratesFor(ctx context.Context, base string) (Rates, bool) {
	if cached, ok := s.cache.Get(ctx, base); ok {
		s.observe("rates", true)
		return cached, true
	}
	s.observe("rates", false)

	if s.rates == nil {
		return nil, false
	}

	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do("rates:"+base, func() (any, error) {
		fetched, err := s.rates.FetchRates(fetchCtx, base)
		if err != nil {
			return nil, err
		}
		s.cache.Set(fetchCtx, base, fetched)
		return fetched, nil
	})
	if err != nil {
		s.logger.Warn("exchange rates unavailable", zap.String("base", base), zap.Error(err))
		return nil, false
	}
	return v.(Rates), true
}

func (s *Service) observe(kind string, hit bool) {
	if s.observer != nil {
		s.observer.ObserveCacheLookup(kind, hit)
	}
}
