package payments

import (
	"context"
	"log/slog"
	"strconv"

	"realty/internal/app/commands"
	"realty/internal/app/dto"
	"realty/internal/app/handlers/reservations"
	"realty/internal/app/policies"
	"realty/internal/domain/reservation"
	"realty/internal/domain/shared/daterange"
)

// Fulfiller marks a paid session's reservation as paid and, only on the transition,
// sends the guest an itinerary and a receipt.
type Fulfiller struct {
	Commands commands.Bus
	Notifier policies.Notifier
	Logger   *slog.Logger
}

func (f Fulfiller) Fulfill(ctx context.Context, session policies.CheckoutSession) (*dto.Fulfillment, error) {
	s := session
	res, err := commands.Dispatch[reservations.MarkPaidCommand, *reservations.MarkPaidResult](ctx, f.Commands, reservations.MarkPaidCommand{
		SessionID: session.ID,
		Session:   &s,
	})
	if err != nil {
		return nil, err
	}
	out := &dto.Fulfillment{
		SessionID:     session.ID,
		ReservationID: string(res.Reservation.ID),
		Status:        string(res.Reservation.Status),
		Transitioned:  res.Transitioned,
	}
	if res.Transitioned {
		out.EmailsSent = f.notify(ctx, res.Reservation)
	}
	return out, nil
}

// notify never fails the fulfillment; each e-mail is attempted independently.
func (f Fulfiller) notify(ctx context.Context, r *reservation.Reservation) int {
	if f.Notifier == nil {
		return 0
	}
	if r.Guest.Email == "" {
		f.log().Warn("paid reservation has no guest e-mail", "reservation_id", r.ID)
		return 0
	}
	data := emailData(r)
	sent := 0
	for _, email := range []policies.Email{
		{Template: policies.TemplateItinerary, To: r.Guest.Email, Subject: "Your stay is confirmed", Data: data},
		{Template: policies.TemplateReceipt, To: r.Guest.Email, Subject: "Payment receipt", Data: data},
	} {
		if err := f.Notifier.Send(ctx, email); err != nil {
			f.log().Error("reservation e-mail failed", "template", email.Template, "reservation_id", r.ID, "error", err)
			continue
		}
		sent++
	}
	return sent
}

func emailData(r *reservation.Reservation) map[string]string {
	return map[string]string{
		"reservation_id": string(r.ID),
		"property_id":    string(r.PropertyID),
		"guest_name":     r.Guest.Name,
		"checkin":        daterange.FormatDay(r.Range.CheckIn),
		"checkout":       daterange.FormatDay(r.Range.CheckOut),
		"nights":         strconv.Itoa(r.Nights),
		"guests":         strconv.Itoa(r.Guests),
		"total":          r.Total.Decimal(),
		"currency":       r.Total.Currency,
		"session_id":     r.SessionID,
	}
}

func (f Fulfiller) log() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}
