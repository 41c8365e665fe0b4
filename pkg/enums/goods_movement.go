package enums

// GoodsMovement describes the stock effect of entering an order state.
type GoodsMovement string

const (
	GoodsMovementNone    GoodsMovement = "none"
	GoodsMovementReceipt GoodsMovement = "receipt"
	GoodsMovementSale    GoodsMovement = "sale"
)

// String implements fmt.Stringer.
func (m GoodsMovement) String() string {
	return string(m)
}

// MovesStock reports whether the movement mutates the stock ledger.
func (m GoodsMovement) MovesStock() bool {
	return m == GoodsMovementReceipt || m == GoodsMovementSale
}
