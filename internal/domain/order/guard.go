package order

// GuardPolicy decides whether the latest order of a mobile number blocks a
// new submission.
type GuardPolicy struct {
	// AllowAfterCancel lets a customer order again once their previous order
	// was cancelled.
	AllowAfterCancel bool
}

// Blocks reports whether a previous order in status st prevents a new one.
func (p GuardPolicy) Blocks(st Status) bool {
	switch st {
	case StatusConfirmed, StatusDelivered:
		return false
	case StatusCancelled:
		return !p.AllowAfterCancel
	default:
		return true
	}
}

// BlocksOrder applies Blocks to the latest order, nil meaning none exists.
func (p GuardPolicy) BlocksOrder(latest *Order) bool {
	if latest == nil {
		return false
	}
	return p.Blocks(latest.Status)
}
