package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/snapshot"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/pkg/types"
)

const (
	// ImplicitTLSPort is the SMTPS port; other ports upgrade with STARTTLS when offered.
	ImplicitTLSPort = 465

	emailTimeout = 30 * time.Second
)

// EmailConfig configures the e-mail notifier.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Subject  string
	Snapshot snapshot.Options
}

// Email sends the alert snapshot as a JPEG attachment.
type Email struct {
	cfg EmailConfig
}

// NewEmail validates cfg and returns an e-mail notifier.
func NewEmail(cfg EmailConfig) (*Email, error) {
	if cfg.Host == "" {
		return nil, errors.New("email: smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("email: sender address is required")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("email: at least one recipient is required")
	}
	if cfg.Port == 0 {
		cfg.Port = ImplicitTLSPort
	}
	if cfg.Subject == "" {
		cfg.Subject = "Motion detected"
	}
	return &Email{cfg: cfg}, nil
}

func (e *Email) Name() string { return "email" }

// Notify encodes the snapshot and sends the message.
func (e *Email) Notify(ctx context.Context, event types.AlertEvent) error {
	jpegData, err := snapshot.Encode(event.Frame, e.cfg.Snapshot)
	if err != nil {
		return err
	}

	msg, err := BuildMessage(e.cfg, event, jpegData)
	if err != nil {
		return err
	}

	return e.send(ctx, msg)
}

func (e *Email) send(ctx context.Context, msg *mail.Msg) error {
	timeout, err := waitBudget(ctx, emailTimeout)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}

	opts := []mail.Option{
		mail.WithPort(e.cfg.Port),
		mail.WithTimeout(timeout),
	}
	if e.cfg.Port == ImplicitTLSPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if e.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.cfg.Username),
			mail.WithPassword(e.cfg.Password),
		)
	}

	client, err := mail.NewClient(e.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("email: dial %s: %w", addr, err)
	}
	if err := client.Send(msg); err != nil {
		_ = client.Close()
		return fmt.Errorf("email: send via %s: %w", addr, err)
	}

	// The server has accepted the message at this point.
	if err := client.Close(); err != nil {
		log.Debug("SMTP quit on %s: %v", addr, err)
	}
	return nil
}

// BuildMessage renders the alert as a text summary with the JPEG snapshot
// attached.
func BuildMessage(cfg EmailConfig, event types.AlertEvent, jpegData []byte) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(cfg.From); err != nil {
		return nil, fmt.Errorf("email: from: %w", err)
	}
	if err := msg.To(cfg.To...); err != nil {
		return nil, fmt.Errorf("email: to: %w", err)
	}
	msg.Subject(cfg.Subject)
	msg.SetDateWithValue(event.Timestamp)
	msg.SetMessageIDWithValue(event.ID + "@motion-sentry")

	var body strings.Builder
	fmt.Fprintf(&body, "Motion detected at %s.\r\n", event.Timestamp.Format(time.RFC1123))
	fmt.Fprintf(&body, "Alert ID: %s\r\nMotion pixels: %d\r\n", event.ID, event.MotionArea)
	if event.HasEnvelope {
		fmt.Fprintf(&body, "Motion area: %s\r\n", event.Envelope)
	}
	msg.SetBodyString(mail.TypeTextPlain, body.String())

	filename := fmt.Sprintf("motion_%s.jpg", event.Timestamp.Format("20060102_150405"))
	if err := msg.AttachReader(filename, bytes.NewReader(jpegData),
		mail.WithFileContentType(mail.ContentType("image/jpeg"))); err != nil {
		return nil, fmt.Errorf("email: attach snapshot: %w", err)
	}
	return msg, nil
}
