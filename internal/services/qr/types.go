package qr

// Fixed header of the bank-transfer record, in line order.
const (
	ServiceTag     = "BCD"
	FormatVersion  = "002"
	CharsetCP1251  = "2"
	Identification = "UCT"
	Currency       = "UAH"
)

// PaymentData is everything the record carries. Text fields are sanitized on encode.
type PaymentData struct {
	Name    string
	IBAN    string
	Amount  float64
	EDRPOU  string
	Purpose string
}
