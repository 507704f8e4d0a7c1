package approval

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Converter は金額を別通貨に換算します。換算できない場合は false を返します。
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, bool)
}

// View は表示用に申請者名と基準通貨換算額を付与した申請です。
type View struct {
	*Approval
	RequestorDisplayName string
	ConvertedAmount      *decimal.Decimal
	BaseCurrency         string
}

// Enricher は申請一覧に表示用の情報を付与します。
type Enricher struct {
	converter Converter
}

// NewEnricher は Enricher を生成します。converter が nil の場合は換算を行いません。
func NewEnricher(converter Converter) *Enricher {
	return &Enricher{converter: converter}
}

// Enrich は items の順序を保ったまま View に変換します。換算の失敗は ConvertedAmount を nil にするだけです。
func (e *Enricher) Enrich(ctx context.Context, items []*Approval, baseCurrency string) []View {
	base := strings.ToUpper(strings.TrimSpace(baseCurrency))
	views := make([]View, 0, len(items))
	for _, a := range items {
		v := View{
			Approval:             a,
			RequestorDisplayName: a.RequestorEmail,
			BaseCurrency:         base,
		}
		if a.RequestorName != nil && strings.TrimSpace(*a.RequestorName) != "" {
			v.RequestorDisplayName = *a.RequestorName
		}
		if e.converter != nil && base != "" && a.Amount != nil && a.Currency != nil {
			if converted, ok := e.converter.Convert(ctx, *a.Amount, *a.Currency, base); ok {
				v.ConvertedAmount = &converted
			}
		}
		views = append(views, v)
	}
	return views
}
