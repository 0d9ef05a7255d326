package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/logger"
)

const DefaultMailbox = "Drafts"

// ErrNotConfigured is returned when no IMAP server is set up.
var ErrNotConfigured = errors.New("mail channel is not configured")

type Config struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"-"`
	Mailbox  string `mapstructure:"mailbox"`
}

// session is the part of the IMAP client Drafts uses.
type session interface {
	Login(username, password string) error
	Append(mbox string, flags []string, date time.Time, msg imap.Literal) error
	Logout() error
}

// Drafts stores composed applications as drafts in an IMAP mailbox, leaving
// the final send to the user.
type Drafts struct {
	cfg    Config
	dial   func(addr string) (session, error)
	logger *zap.Logger
}

func NewDrafts(cfg Config, log *zap.Logger) *Drafts {
	if cfg.Mailbox == "" {
		cfg.Mailbox = DefaultMailbox
	}
	return &Drafts{
		cfg: cfg,
		dial: func(addr string) (session, error) {
			return client.DialTLS(addr, &tls.Config{MinVersion: tls.VersionTLS12})
		},
		logger: logger.OrNop(log),
	}
}

// Connected reports whether the channel can stage messages.
func (d *Drafts) Connected(string) bool {
	return d != nil && d.cfg.Address != "" && d.cfg.Username != ""
}

// Submit appends raw to the drafts mailbox.
func (d *Drafts) Submit(ctx context.Context, userID, recipient string, raw []byte) error {
	if !d.Connected(userID) {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := d.dial(d.cfg.Address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", d.cfg.Address, err)
	}
	defer func() {
		if err := c.Logout(); err != nil {
			d.logger.Debug("imap logout", zap.Error(err))
		}
	}()

	if err := c.Login(d.cfg.Username, d.cfg.Password); err != nil {
		return fmt.Errorf("imap login: %w", err)
	}
	if err := c.Append(d.cfg.Mailbox, []string{imap.DraftFlag}, time.Now(), bytes.NewBuffer(raw)); err != nil {
		return fmt.Errorf("append to %s: %w", d.cfg.Mailbox, err)
	}

	d.logger.Info("application email staged as draft",
		zap.String(logger.FieldUserID, userID),
		zap.String("recipient", recipient),
		zap.String("mailbox", d.cfg.Mailbox),
	)
	return nil
}
