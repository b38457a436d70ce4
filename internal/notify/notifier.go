// Package notify delivers push notifications to driver and rider devices.
// Delivery is best-effort: dispatch never fails because a push could not be
// sent.
package notify

import "context"

// Notification is a device push payload.
type Notification struct {
	Title string
	Data  map[string]string
}

// Notifier sends a notification to a device token.
type Notifier interface {
	Send(ctx context.Context, token string, n Notification) error
}

// NopNotifier discards every notification. It stands in for FCM when no
// Firebase project is configured.
type NopNotifier struct{}

func (NopNotifier) Send(context.Context, string, Notification) error { return nil }

// NewTripOffer is the push sent to a driver when a trip is offered.
func NewTripOffer() Notification {
	return Notification{
		Title: "You have a new ride request",
		Data: map[string]string{
			"click_action": "FLUTTER_NOTIFICATION_CLICK",
			"sound":        "default",
			"icon":         "default",
		},
	}
}

// VerificationCode is the push carrying a trip-start verification code to
// the rider.
func VerificationCode(code string) Notification {
	return Notification{
		Title: "OTP for trip is " + code,
		Data: map[string]string{
			"click_action": "FLUTTER_NOTIFICATION_CLICK",
			"sound":        "default",
			"icon":         "default",
		},
	}
}
