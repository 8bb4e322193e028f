package main

import (
	"fmt"

	"bazaar/internal/domain/paymentsrepo"
	"bazaar/internal/mailer"
)

// background runs fn outside the request and keeps shutdown waiting for it.
func (app *application) background(fn func()) {
	app.wg.Add(1)

	go func() {
		defer app.wg.Done()
		defer func() {
			if err := recover(); err != nil {
				app.logger.Errorw("background task panicked", "error", fmt.Sprintf("%v", err))
			}
		}()

		fn()
	}()
}

func (app *application) sendReceipt(p *paymentsrepo.Payment) {
	if app.mailer == nil {
		return
	}

	ref := ""
	if p.GatewayRef != nil {
		ref = *p.GatewayRef
	}
	receipt := mailer.Receipt{
		OrderID:     p.OrderID,
		TxnID:       p.TxnID,
		GatewayRef:  ref,
		Amount:      p.Amount,
		ProductInfo: p.ProductInfo,
		FirstName:   p.FirstName,
		From:        mailer.FromName,
	}

	app.background(func() {
		if err := app.mailer.Send(mailer.ReceiptTemplate, p.Email, receipt); err != nil {
			app.logger.Errorw("failed to send payment receipt", "txnid", p.TxnID, "error", err.Error())
			return
		}
		app.logger.Infow("payment receipt sent", "txnid", p.TxnID)
	})
}
