package validation

const (
	// Amount limits
	MinPaymentAmount = 0.01
	MaxPaymentAmount = 10000000.00

	MaxPurposeLength = 255
	MaxNameLength    = 255

	MaxPercentRate = 100
)
