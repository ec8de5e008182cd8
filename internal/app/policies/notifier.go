package policies

import "context"

const (
	TemplateItinerary = "reservation_itinerary"
	TemplateReceipt   = "reservation_receipt"
)

// Email asks the mailer to render Template with Data and send it to To.
type Email struct {
	Template string
	To       string
	Subject  string
	Data     map[string]string
}

type Notifier interface {
	Send(ctx context.Context, email Email) error
}
