package trading

import "paisa-trader/internal/models"

// MaxQtyPerOrder returns the largest quantity a single order leg may
// carry for the index: a tenth of the freeze quantity.
func MaxQtyPerOrder(cfg models.IndexConfig) int {
	return (cfg.LotSize * cfg.MaxLotSize) / 10
}

// MaxLegsPerBatch returns how many legs fit in one bulk order call.
func MaxLegsPerBatch(cfg models.IndexConfig) int {
	maxQty := MaxQtyPerOrder(cfg)
	if maxQty <= 0 {
		return 0
	}
	return (cfg.LotSize * cfg.MaxLotSize) / maxQty
}

// PurchasableQuantity returns the largest whole-lot quantity the given
// margin can buy at the contract's last traded price. Returns 0 when
// the margin does not cover a full lot or the price is not positive.
func PurchasableQuantity(margin, lastRate float64, lotSize int) int {
	if lastRate <= 0 || lotSize <= 0 || margin <= 0 {
		return 0
	}
	units := int(margin / lastRate)
	lots := units / lotSize
	return lots * lotSize
}

// SplitBatches splits a total quantity into order legs capped at
// MaxQtyPerOrder, grouped into batches capped at MaxLegsPerBatch.
// The template leg supplies everything but the quantity.
func SplitBatches(cfg models.IndexConfig, template models.OrderLeg, quantity int) []models.OrderBatch {
	if quantity <= 0 {
		return nil
	}
	maxQty := MaxQtyPerOrder(cfg)
	maxLegs := MaxLegsPerBatch(cfg)
	if maxQty <= 0 || maxLegs <= 0 {
		return nil
	}

	var legs []models.OrderLeg
	remaining := quantity
	for remaining > 0 {
		legQty := remaining
		if legQty > maxQty {
			legQty = maxQty
		}
		leg := template
		leg.Quantity = legQty
		legs = append(legs, leg)
		remaining -= legQty
	}

	var batches []models.OrderBatch
	for start := 0; start < len(legs); start += maxLegs {
		end := start + maxLegs
		if end > len(legs) {
			end = len(legs)
		}
		batch := models.OrderBatch{Legs: make([]models.OrderLeg, end-start)}
		copy(batch.Legs, legs[start:end])
		batches = append(batches, batch)
	}
	return batches
}
