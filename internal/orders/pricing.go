package orders

import (
	"math"

	"github.com/shopspring/decimal"
)

// WholesaleThreshold is the line quantity from which the wholesale price applies.
const WholesaleThreshold = 100

// MaxQty bounds every quantity the service accepts: line items, received
// stock and quantity-on-hand. It is the range of the INTEGER qty columns.
const MaxQty = math.MaxInt32

func PricePerUnit(p Product, qty int) decimal.Decimal {
	if qty >= WholesaleThreshold {
		return p.WholesalePrice
	}
	return p.UnitPrice
}

// PriceItems prices items against the given products. Items whose product is
// unknown are left out of the view and the total.
func PriceItems(items []LineItem, products map[int64]Product) ([]PricedItem, decimal.Decimal) {
	out := make([]PricedItem, 0, len(items))
	total := decimal.Zero
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			continue
		}
		unit := PricePerUnit(p, it.Qty)
		line := unit.Mul(decimal.NewFromInt(int64(it.Qty)))
		total = total.Add(line)
		out = append(out, PricedItem{
			ProductID:    it.ProductID,
			Name:         p.Name,
			Qty:          it.Qty,
			PricePerUnit: unit,
			TotalPrice:   line,
		})
	}
	return out, total
}
