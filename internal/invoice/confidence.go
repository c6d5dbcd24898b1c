package invoice

// Score rates a result's completeness on [0,1]. Points out of ten:
//
//	invoice number 1, invoice date 1, vendor name 1.5, vendor address 1,
//	vendor phone or email 0.5, any line items 1, detailed line items up to 2
//	(0.5 each), grand total 1, subtotal or tax 1.
func Score(r *Result) float64 {
	points := 0.0
	if Found(r.InvoiceMetadata.InvoiceNumber) {
		points += 1
	}
	if Found(r.InvoiceMetadata.InvoiceDate) {
		points += 1
	}

	v := r.VendorDetails
	if Found(v.Name) {
		points += 1.5
	}
	if Found(v.Address.Street) || Found(v.Address.City) || Found(v.Address.PostalCode) {
		points += 1
	}
	if Found(v.Phone) || Found(v.Email) {
		points += 0.5
	}

	if len(r.LineItems) > 0 {
		points += 1
		detailed := 0.0
		for _, item := range r.LineItems {
			if Found(item.Description) && item.Subtotal.Valid() &&
				(item.Quantity.Valid() || item.UnitPrice.Valid()) {
				detailed += 0.5
			}
		}
		points += min(detailed, 2)
	}

	if r.Summary.GrandTotal.IsPositive() {
		points += 1
	}
	if r.Summary.Subtotal.IsPositive() || r.Summary.TaxTotal().IsPositive() {
		points += 1
	}

	return roundScore(points / 10)
}

// LevelFor maps a score to a coarse confidence level.
func LevelFor(score float64) Confidence {
	switch {
	case score >= 0.7:
		return ConfidenceHigh
	case score >= 0.4:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// CapAt lowers c to ceiling when it ranks higher.
func CapAt(c, ceiling Confidence) Confidence {
	rank := map[Confidence]int{ConfidenceLow: 0, ConfidenceMedium: 1, ConfidenceHigh: 2}
	if rank[c] > rank[ceiling] {
		return ceiling
	}
	return c
}
