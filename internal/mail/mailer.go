// Package mail composes account emails and relays them over SMTP.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrDeliveryDisabled is returned by Send when EMAIL_ENABLED is off.
var ErrDeliveryDisabled = errors.New("mail: delivery disabled")

const defaultSMTPTimeout = 10 * time.Second

// Message is a plain-text email to a single account holder.
type Message struct {
	To string
	// ToName is the display name used when To carries none.
	ToName  string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig configures the relay used by SMTPMailer.
type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	// From is the sender address, optionally with a display name.
	From string
	// ImplicitTLS dials TLS directly. Otherwise STARTTLS is used when the
	// relay offers it.
	ImplicitTLS bool
	Timeout     time.Duration
}

// session is the part of *smtp.Client used once the connection is ready.
type session interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// SMTPMailer sends each message over a fresh connection to one relay.
type SMTPMailer struct {
	cfg    SMTPConfig
	sender *mail.Address
	dial   func(ctx context.Context) (session, error)
	now    func() time.Time
}

// NewSMTPMailer checks cfg and returns the mailer. A disabled config is
// accepted as is; Send then fails with ErrDeliveryDisabled.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	m := &SMTPMailer{cfg: cfg, now: time.Now}
	m.dial = m.dialRelay
	if !cfg.Enabled {
		return m, nil
	}

	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("mail: smtp host is required when email is enabled")
	}
	if cfg.Port <= 0 {
		return nil, errors.New("mail: smtp port is required when email is enabled")
	}
	sender, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("mail: invalid sender %q: %w", cfg.From, err)
	}
	m.sender = sender
	return m, nil
}

// Send composes msg and relays it.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrDeliveryDisabled
	}

	rcpt, err := recipient(msg)
	if err != nil {
		return err
	}
	payload, err := m.compose(rcpt, msg)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	return deliver(s, m.sender.Address, rcpt.Address, payload)
}

func recipient(msg Message) (*mail.Address, error) {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return nil, errors.New("mail: recipient is required")
	}
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return nil, fmt.Errorf("mail: invalid recipient %q: %w", to, err)
	}
	if addr.Name == "" {
		addr.Name = singleLine(msg.ToName)
	}
	return addr, nil
}

// compose renders msg as a text/plain message with a quoted-printable body.
func (m *SMTPMailer) compose(to *mail.Address, msg Message) ([]byte, error) {
	var buf bytes.Buffer
	header := func(key, value string) {
		buf.WriteString(key)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}

	header("From", m.sender.String())
	header("To", to.String())
	header("Subject", mime.QEncoding.Encode("utf-8", singleLine(msg.Subject)))
	header("Date", m.now().Format(time.RFC1123Z))
	header("Message-ID", messageID(m.sender.Address))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	header("Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	// Text mode rewrites every line ending as CRLF.
	qp := quotedprintable.NewWriter(&buf)
	if _, err := io.WriteString(qp, msg.Body); err != nil {
		return nil, fmt.Errorf("mail: encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("mail: encode body: %w", err)
	}
	return buf.Bytes(), nil
}

func deliver(s session, from, to string, payload []byte) error {
	if err := s.Mail(from); err != nil {
		return fmt.Errorf("mail: MAIL FROM: %w", err)
	}
	if err := s.Rcpt(to); err != nil {
		return fmt.Errorf("mail: RCPT TO %s: %w", to, err)
	}

	w, err := s.Data()
	if err != nil {
		return fmt.Errorf("mail: DATA: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return fmt.Errorf("mail: write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail: end of data: %w", err)
	}
	return s.Quit()
}

// dialRelay connects, upgrades to TLS and authenticates. The whole
// exchange shares one deadline taken from ctx or the configured timeout.
func (m *SMTPMailer) dialRelay(ctx context.Context) (session, error) {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	tlsConfig := &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}
	nd := &net.Dialer{Timeout: m.cfg.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if m.cfg.ImplicitTLS {
		conn, err = (&tls.Dialer{NetDialer: nd, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = nd.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("mail: dial %s: %w", addr, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(m.cfg.Timeout)
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("mail: greeting from %s: %w", addr, err)
	}
	if !m.cfg.ImplicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				_ = c.Close()
				return nil, fmt.Errorf("mail: starttls: %w", err)
			}
		}
	}
	if m.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("mail: auth: %w", err)
		}
	}
	return c, nil
}

func messageID(sender string) string {
	domain := "localhost"
	if at := strings.LastIndexByte(sender, '@'); at >= 0 && at < len(sender)-1 {
		domain = sender[at+1:]
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "<" + id.String() + "@" + domain + ">"
}

// singleLine keeps header values on one line.
func singleLine(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(s))
}
