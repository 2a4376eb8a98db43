// Package whatsapp delivers invitation links from a linked WhatsApp device.
//
// The device is paired once by scanning a QR code printed to the log;
// the session is kept in a sqlite database under the data directory.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

var (
	ErrNotConnected  = errors.New("whatsapp: client is not connected")
	ErrNotOnWhatsApp = errors.New("whatsapp: number is not registered on WhatsApp")
)

type Config struct {
	DataDir string
	// DefaultCountryCode replaces a single leading 0 of national numbers.
	DefaultCountryCode string
}

type Service struct {
	client    *whatsmeow.Client
	cfg       Config
	log       *zap.Logger
	connected atomic.Bool
}

// NewService opens the session store and prepares a client. It does not
// connect.
func NewService(ctx context.Context, cfg Config, logger *zap.Logger) (*Service, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create whatsapp data dir: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s/whatsmeow.db?_foreign_keys=on", cfg.DataDir), nil)
	if err != nil {
		return nil, fmt.Errorf("open whatsapp session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load whatsapp device: %w", err)
	}

	s := &Service{
		client: whatsmeow.NewClient(deviceStore, nil),
		cfg:    cfg,
		log:    logger.With(zap.String("component", "whatsapp")),
	}
	s.client.AddEventHandler(s.eventHandler)
	return s, nil
}

// Connect connects the client. An unpaired device first prints a pairing
// QR code and blocks until the pairing flow ends.
func (s *Service) Connect(ctx context.Context) error {
	if s.client.Store.ID != nil {
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("connect whatsapp: %w", err)
		}
		return nil
	}

	qrChan, err := s.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("whatsapp pairing: %w", err)
	}
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("connect whatsapp: %w", err)
	}
	for evt := range qrChan {
		if evt.Event != "code" {
			s.log.Info("pairing event", zap.String("event", evt.Event))
			continue
		}
		q, err := qrcode.New(evt.Code, qrcode.Medium)
		if err != nil {
			s.log.Warn("render pairing qr failed", zap.String("code", evt.Code), zap.Error(err))
			continue
		}
		s.log.Info("scan with WhatsApp > Linked Devices > Link a Device\n" + q.ToSmallString(false))
	}
	return nil
}

func (s *Service) Disconnect() {
	s.client.Disconnect()
}

// SendText sends text to phone after checking the number is on WhatsApp.
func (s *Service) SendText(ctx context.Context, phone, text string) error {
	if !s.connected.Load() {
		return ErrNotConnected
	}

	number := NormalizePhoneNumber(phone, s.cfg.DefaultCountryCode)
	if number == "" {
		return ErrNotOnWhatsApp
	}

	resp, err := s.client.IsOnWhatsApp(ctx, []string{"+" + number})
	if err != nil {
		return fmt.Errorf("verify number on whatsapp: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return ErrNotOnWhatsApp
	}
	jid := resp[0].JID

	sent, err := s.client.SendMessage(ctx, jid, &waE2E.Message{Conversation: &text})
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	s.log.Debug("message sent", zap.String("jid", jid.String()), zap.String("message_id", sent.ID))
	return nil
}

func (s *Service) eventHandler(evt interface{}) {
	switch evt.(type) {
	case *events.Connected:
		s.connected.Store(true)
		s.log.Info("connected")
	case *events.Disconnected:
		s.connected.Store(false)
		s.log.Info("disconnected")
	case *events.LoggedOut:
		s.connected.Store(false)
		s.log.Warn("logged out, pairing required")
	}
}

// NormalizePhoneNumber strips formatting and returns digits in
// international form without a leading plus. A national number with a
// single leading 0 gets countryCode in its place; a country code followed
// by that 0 has the 0 removed.
func NormalizePhoneNumber(phone, countryCode string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	countryCode = strings.TrimPrefix(countryCode, "+")

	switch {
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case countryCode != "" && strings.HasPrefix(digits, "0"):
		digits = countryCode + digits[1:]
	}
	if countryCode != "" && strings.HasPrefix(digits, countryCode+"0") {
		digits = countryCode + digits[len(countryCode)+1:]
	}
	return digits
}
