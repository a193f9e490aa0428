package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/phish-triage/internal/adapters/source"
	"github.com/mikey/phish-triage/internal/core"
	"go.uber.org/zap"
)

// PostfixFilter implements a Postfix content filter. Every message is
// triaged, annotated with its verdict and handed back to Postfix; nothing
// is rejected or quarantined.
type PostfixFilter struct {
	service        *core.TriageService
	parser         *source.Parser
	logger         *zap.Logger
	listenAddr     string
	server         *smtp.Server
	annotation     Annotation
	postfixAddr    string
	postfixPort    int
	postfixEnabled bool
	forward        func(sender string, recipients []string, data []byte) error
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(
	service *core.TriageService,
	parser *source.Parser,
	logger *zap.Logger,
	listenAddr string,
	annotation Annotation,
	postfixAddr string,
	postfixPort int,
	postfixEnabled bool,
) *PostfixFilter {
	f := &PostfixFilter{
		service:        service,
		parser:         parser,
		logger:         logger,
		listenAddr:     listenAddr,
		annotation:     annotation,
		postfixAddr:    postfixAddr,
		postfixPort:    postfixPort,
		postfixEnabled: postfixEnabled,
	}
	f.forward = f.sendToPostfix
	return f
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("Postfix filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail triages a message without forwarding it
func (f *PostfixFilter) ProcessEmail(ctx context.Context, msg *core.RawMessage) (*core.TriageResult, error) {
	return f.service.Triage(ctx, msg)
}

// filterMessage triages raw message data and returns the annotated copy.
// Triage failures are recorded in a header and never stop delivery.
func (f *PostfixFilter) filterMessage(ctx context.Context, raw []byte) ([]byte, *core.TriageResult) {
	var result *core.TriageResult
	msg, err := f.parser.Parse("", bytes.NewReader(raw))
	if err == nil {
		if id := msg.Header("Message-ID"); id != "" {
			msg.ID = id
		}
		result, err = f.service.Triage(ctx, msg)
	}

	if err != nil {
		f.logger.Error("Failed to triage message", zap.Error(err))
		return annotateMessage(raw, core.Verdict{}, f.annotation, err), nil
	}
	return annotateMessage(raw, result.Verdict, f.annotation, nil), result
}

// sendToPostfix sends the processed email back to Postfix on the configured port using go-smtp
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := net.JoinHostPort(f.postfixAddr, fmt.Sprint(f.postfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	// The message is already accepted at this point
	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data triages the message and forwards the annotated copy
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	annotated, result := s.filter.filterMessage(ctx, raw)

	if s.filter.postfixEnabled {
		if err := s.filter.forward(s.sender, s.recipients, annotated); err != nil {
			s.filter.logger.Error("Failed to send email back to Postfix",
				zap.Error(err),
				zap.String("sender", s.sender))
			return err
		}
	} else {
		s.filter.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
	}

	if result != nil {
		s.filter.logger.Info("Processed email",
			zap.String("from", s.sender),
			zap.String("message_id", result.MessageID),
			zap.String("severity", string(result.Verdict.Severity)),
			zap.Int("score", result.Verdict.Score),
			zap.Strings("rule_hits", result.Verdict.RuleHits))
	}

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
