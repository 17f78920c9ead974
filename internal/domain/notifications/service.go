// Package notifications records and delivers state-transition notices.
// Delivery is best effort: the leave engine's transactions never depend on
// a notification landing.
package notifications

import (
	"context"
	"log/slog"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type StoreAPI interface {
	CreateNotification(ctx context.Context, employeeID, event, title, body string) error
	ListNotifications(ctx context.Context, employeeID string, limit, offset int) ([]Notification, error)
	MarkRead(ctx context.Context, employeeID, notificationID string) error
	EmployeeEmail(ctx context.Context, employeeID string) (string, error)
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	DefaultFrom string
}

func New(store StoreAPI, mailer Mailer, from string) *Service {
	if from == "" {
		from = "no-reply@example.com"
	}
	return &Service{store: store, Mailer: mailer, DefaultFrom: from}
}

// Notify persists the notice and emails the employee if a mailer is wired.
// Called after the owning transaction commits; failures are logged and
// swallowed so they cannot disturb ledger state.
func (s *Service) Notify(ctx context.Context, employeeID, event, title, body string) {
	if err := s.store.CreateNotification(ctx, employeeID, event, title, body); err != nil {
		slog.Warn("notification store failed", "event", event, "employeeId", employeeID, "err", err)
	}

	if s.Mailer == nil {
		return
	}
	email, err := s.store.EmployeeEmail(ctx, employeeID)
	if err != nil || email == "" {
		if err != nil {
			slog.Warn("notification email lookup failed", "employeeId", employeeID, "err", err)
		}
		return
	}
	if err := s.Mailer.Send(ctx, s.DefaultFrom, email, title, body); err != nil {
		slog.Warn("notification email send failed", "employeeId", employeeID, "err", err)
	}
}

func (s *Service) List(ctx context.Context, employeeID string, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, employeeID, limit, offset)
}

func (s *Service) MarkRead(ctx context.Context, employeeID, notificationID string) error {
	return s.store.MarkRead(ctx, employeeID, notificationID)
}
