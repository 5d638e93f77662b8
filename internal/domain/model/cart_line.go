package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	MinQuantity = 1
	MaxQuantity = 10
)

// ローカル（未同期）明細IDの接頭辞
const LocalLineIDPrefix = "local-"

// カートの明細
// UnitPrice は追加時点の価格を保存。
type CartLine struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Product   ProductSummary  `json:"product"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// IsLocal はサーバー未採番の明細か。
func (l CartLine) IsLocal() bool {
	return IsLocalLineID(l.ID)
}

func (l CartLine) clone() CartLine {
	out := l
	if l.Product.Sizes != nil {
		out.Product.Sizes = append([]string(nil), l.Product.Sizes...)
	}
	return out
}

func IsLocalLineID(id string) bool {
	return strings.HasPrefix(id, LocalLineIDPrefix)
}

// ClampQuantity は数量を [1,10] に丸める。
func ClampQuantity(qty int) int {
	if qty < MinQuantity {
		return MinQuantity
	}
	if qty > MaxQuantity {
		return MaxQuantity
	}
	return qty
}
