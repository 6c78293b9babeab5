// Package notification emails clients about appointment lifecycle changes.
// It consumes relayed outbox events, so a mail outage never blocks booking.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/iosifidis/msc-pims/internal/config"
	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/internal/repository"
	"github.com/iosifidis/msc-pims/pkg/logger"
)

// Dialer sends a composed message. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Service struct {
	dialer    Dialer
	from      string
	directory repository.DirectoryRepository
	logger    *logger.Logger
}

func NewService(cfg config.SMTPConfig, directory repository.DirectoryRepository, log *logger.Logger) *Service {
	return &Service{
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:      cfg.From,
		directory: directory,
		logger:    log,
	}
}

// Notify emails the client behind an appointment event. Events without a
// client-facing message are ignored.
func (s *Service) Notify(ctx context.Context, event *model.OutboxEvent) error {
	var subject, body string
	switch event.EventType {
	case model.EventAppointmentCreated:
		subject = "Appointment confirmed"
		body = "Your appointment for %s on %s has been booked."
	case model.EventAppointmentCancelled:
		subject = "Appointment cancelled"
		body = "Your appointment for %s on %s has been cancelled."
	case model.EventAppointmentUpdated:
		subject = "Appointment updated"
		body = "Your appointment for %s has been moved to %s."
	default:
		return nil
	}

	var apt model.Appointment
	if err := json.Unmarshal(event.Payload, &apt); err != nil {
		return fmt.Errorf("failed to decode appointment payload: %w", err)
	}

	client, err := s.directory.GetClient(ctx, apt.ClientID)
	if err != nil {
		return fmt.Errorf("failed to look up client: %w", err)
	}
	if client.Email == "" {
		s.logger.Debug("client has no email, skipping notification",
			"client_id", client.ID.String())
		return nil
	}

	patient, err := s.directory.GetPatient(ctx, apt.PatientID)
	if err != nil {
		return fmt.Errorf("failed to look up patient: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", client.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", fmt.Sprintf(body,
		patient.Name,
		apt.StartTime.Format("Mon, 2 Jan 2006 15:04"),
	))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}
