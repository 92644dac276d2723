// Package mail delivers booking confirmation emails. With no SMTP
// endpoint configured it appends the rendered message to a log file so
// local runs still show what would have been sent.
package mail

import (
	"fmt"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"time"

	"staybook/internal/domain"
)

type Mailer struct {
	smtpAddr string
	from     string
	logDir   string
}

func New(smtpAddr, from, logDir string) *Mailer {
	return &Mailer{smtpAddr: smtpAddr, from: from, logDir: logDir}
}

// Render builds the confirmation subject and body for the event.
func Render(ev domain.BookingConfirmedEvent) (subject, body string) {
	name := ev.GuestName
	if name == "" {
		name = "Guest"
	}
	subject = "Booking Confirmed!"
	body = fmt.Sprintf(
		"Hello %s,\n\nYour booking for %s has been confirmed. We look forward to seeing you!\n\n"+
			"Details:\n- Check-in: %s\n- Check-out: %s\n- Total Price: %s\n\nThanks,\nYour Booking App Team",
		name, ev.ListingName, ev.StartDate, ev.EndDate, ev.TotalPrice)
	return subject, body
}

func (m *Mailer) SendBookingConfirmation(ev domain.BookingConfirmedEvent) error {
	subject, body := Render(ev)
	if m.smtpAddr == "" {
		return m.appendToLog(ev, subject, body)
	}

	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + ev.GuestEmail,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(m.smtpAddr, nil, m.from, []string{ev.GuestEmail}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *Mailer) appendToLog(ev domain.BookingConfirmedEvent, subject, body string) error {
	if err := os.MkdirAll(m.logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", m.logDir, err)
	}
	fpath := filepath.Join(m.logDir, "mail.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open mail log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] to=%s booking=%s subject=%q\n%s\n\n",
		time.Now().UTC().Format(time.RFC3339), ev.GuestEmail, ev.BookingID, subject, body)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write mail log: %w", err)
	}
	return nil
}
