package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type CartMode string

const (
	CartModeGuest         CartMode = "GUEST"
	CartModeAuthenticated CartMode = "AUTHENTICATED"
)

var ErrInvalidCart = errors.New("cart: invalid")

// CartAggregate はカートの正準表現。
// Lines は追加順を保持し、(ProductID, Size) ごとに1行まで。
type CartAggregate struct {
	Mode      CartMode        `json:"mode"`
	Lines     []CartLine      `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	LineCount int             `json:"line_count"`
}

func NewCartAggregate(mode CartMode) *CartAggregate {
	return &CartAggregate{
		Mode:  mode,
		Lines: []CartLine{},
		Total: decimal.Zero,
	}
}

// AddLine は明細を追加する（同一の商品・サイズは数量加算）。
// 追加または加算された明細を返す。
func (c *CartAggregate) AddLine(id string, productID string, qty int, size string, summary ProductSummary) CartLine {
	qty = ClampQuantity(qty)

	if idx := c.indexOf(productID, size); idx >= 0 {
		c.Lines[idx].Quantity = ClampQuantity(c.Lines[idx].Quantity + qty)
		c.recalculate()
		return c.Lines[idx]
	}

	line := CartLine{
		ID:        id,
		ProductID: productID,
		Quantity:  qty,
		Size:      size,
		UnitPrice: summary.Price,
		Product:   summary,
	}
	c.Lines = append(c.Lines, line)
	c.recalculate()
	return line
}

// UpdateQuantity は数量を変更する。存在しない明細なら false。
func (c *CartAggregate) UpdateQuantity(lineID string, qty int) bool {
	idx := c.indexByID(lineID)
	if idx < 0 {
		return false
	}
	c.Lines[idx].Quantity = ClampQuantity(qty)
	c.recalculate()
	return true
}

// UpdateSize はサイズを変更する。
// 同じ商品・サイズの明細が既にある場合はそちらへ数量を合算し、変更対象の行は消える。
// 戻り値は変更後に残った明細ID（変更なしなら空文字）。
func (c *CartAggregate) UpdateSize(lineID string, size string) string {
	idx := c.indexByID(lineID)
	if idx < 0 {
		return ""
	}
	line := c.Lines[idx]
	if line.Size == size {
		return ""
	}

	if other := c.indexOf(line.ProductID, size); other >= 0 {
		c.Lines[other].Quantity = ClampQuantity(c.Lines[other].Quantity + line.Quantity)
		mergedID := c.Lines[other].ID
		c.Lines = removeIndex(c.Lines, idx)
		c.recalculate()
		return mergedID
	}

	c.Lines[idx].Size = size
	c.recalculate()
	return lineID
}

func (c *CartAggregate) RemoveLine(lineID string) bool {
	idx := c.indexByID(lineID)
	if idx < 0 {
		return false
	}
	c.Lines = removeIndex(c.Lines, idx)
	c.recalculate()
	return true
}

// RemoveLines は指定IDをまとめて削除し、実際に消えたIDを返す。
func (c *CartAggregate) RemoveLines(lineIDs []string) []string {
	removed := make([]string, 0, len(lineIDs))
	for _, id := range lineIDs {
		if c.RemoveLine(id) {
			removed = append(removed, id)
		}
	}
	return removed
}

func (c *CartAggregate) Clear() {
	c.Lines = []CartLine{}
	c.recalculate()
}

func (c *CartAggregate) FindLine(lineID string) (CartLine, bool) {
	idx := c.indexByID(lineID)
	if idx < 0 {
		return CartLine{}, false
	}
	return c.Lines[idx], true
}

func (c *CartAggregate) HasLine(lineID string) bool {
	return c.indexByID(lineID) >= 0
}

// LineIDs は表示順の明細IDを返す。
func (c *CartAggregate) LineIDs() []string {
	ids := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		ids = append(ids, l.ID)
	}
	return ids
}

func (c *CartAggregate) Clone() *CartAggregate {
	if c == nil {
		return nil
	}
	out := *c
	out.Lines = make([]CartLine, len(c.Lines))
	for i, l := range c.Lines {
		out.Lines[i] = l.clone()
	}
	return &out
}

// Normalize はストレージやサーバーから来た集約を不変条件に揃える。
// 数量を丸め、(ProductID, Size) の重複は先頭行へ合算し、合計を再計算する。
func (c *CartAggregate) Normalize() {
	if c.Lines == nil {
		c.Lines = []CartLine{}
	}
	merged := make([]CartLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		l.Quantity = ClampQuantity(l.Quantity)
		dup := -1
		for i := range merged {
			if merged[i].ProductID == l.ProductID && merged[i].Size == l.Size {
				dup = i
				break
			}
		}
		if dup >= 0 {
			merged[dup].Quantity = ClampQuantity(merged[dup].Quantity + l.Quantity)
			continue
		}
		merged = append(merged, l)
	}
	c.Lines = merged
	c.recalculate()
}

// Validate は不変条件（数量範囲・行の一意性）を検査する。
func (c *CartAggregate) Validate() error {
	if c == nil {
		return ErrInvalidCart
	}
	seenID := make(map[string]struct{}, len(c.Lines))
	seenKey := make(map[string]struct{}, len(c.Lines))
	for _, l := range c.Lines {
		if l.Quantity < MinQuantity || l.Quantity > MaxQuantity {
			return fmt.Errorf("%w: line %s quantity %d out of range", ErrInvalidCart, l.ID, l.Quantity)
		}
		if _, ok := seenID[l.ID]; ok {
			return fmt.Errorf("%w: duplicate line id %s", ErrInvalidCart, l.ID)
		}
		seenID[l.ID] = struct{}{}

		key := l.ProductID + "\x00" + l.Size
		if _, ok := seenKey[key]; ok {
			return fmt.Errorf("%w: duplicate product %s size %q", ErrInvalidCart, l.ProductID, l.Size)
		}
		seenKey[key] = struct{}{}
	}
	return nil
}

func (c *CartAggregate) recalculate() {
	total := decimal.Zero
	count := 0
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
		count += l.Quantity
	}
	c.Total = total
	c.LineCount = count
}

func (c *CartAggregate) indexOf(productID string, size string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID && l.Size == size {
			return i
		}
	}
	return -1
}

func (c *CartAggregate) indexByID(lineID string) int {
	for i, l := range c.Lines {
		if l.ID == lineID {
			return i
		}
	}
	return -1
}

func removeIndex(lines []CartLine, idx int) []CartLine {
	out := make([]CartLine, 0, len(lines)-1)
	out = append(out, lines[:idx]...)
	return append(out, lines[idx+1:]...)
}
