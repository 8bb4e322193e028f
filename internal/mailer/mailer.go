package mailer

import "embed"

const (
	FromName        = "Bazaar"
	maxRetries      = 3
	ReceiptTemplate = "payment_receipt.tmpl"
)

//go:embed "templates"
var FS embed.FS

// Receipt is the data rendered into ReceiptTemplate.
type Receipt struct {
	OrderID     string
	TxnID       string
	GatewayRef  string
	Amount      string
	ProductInfo string
	FirstName   string
	From        string
}

type Client interface {
	Send(templateFile, email string, data any) error
}
