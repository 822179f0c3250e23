package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier sends best-effort messages to clients. Every caller treats
// a send failure as non-fatal.
type Notifier interface {
	Send(ctx context.Context, phone, body string) error
}

// TwilioNotifier delivers WhatsApp messages through Twilio.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
	logger *slog.Logger
}

func NewTwilioNotifier(accountSID, authToken, from string, logger *slog.Logger) *TwilioNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioNotifier{client: client, from: from, logger: logger}
}

func (n *TwilioNotifier) Send(ctx context.Context, phone, body string) error {
	to := "whatsapp:" + NormalizePhone(phone)

	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(n.from)
	params.SetTo(to)
	params.SetBody(body)

	if _, err := n.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("send whatsapp to %s: %w", to, err)
	}
	n.logger.Info("whatsapp sent", "to", to)
	return nil
}

// LogNotifier backs local development when Twilio credentials are
// absent: messages go to the log instead of the wire.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, phone, body string) error {
	n.logger.Info("whatsapp (log only)", "to", NormalizePhone(phone), "body", body)
	return nil
}

// NormalizePhone strips separators and applies the studio's Italian
// defaults: a leading 0 becomes +39, a bare 39 prefix gains a +, and a
// number with no prefix at all is assumed Italian.
func NormalizePhone(phone string) string {
	n := strings.NewReplacer(" ", "", "-", "", "/", "").Replace(strings.TrimSpace(phone))
	switch {
	case strings.HasPrefix(n, "+"):
	case strings.HasPrefix(n, "0"):
		n = "+39" + n[1:]
	case strings.HasPrefix(n, "39"):
		n = "+" + n
	default:
		n = "+39" + n
	}
	return n
}

func confirmationMessage(clientName string, start time.Time, slot string) string {
	return fmt.Sprintf(
		"✅ Prenotazione confermata!\n\nCiao %s,\n\nLa tua sessione è stata prenotata per:\n📅 %s\n🕐 %s\n\nTi aspettiamo allo studio! 💪",
		clientName, start.Format("02/01/2006"), slot)
}

func reminderMessage(clientName string, start time.Time, slot string) string {
	return fmt.Sprintf(
		"⏰ Promemoria sessione\n\nCiao %s,\n\nTi ricordiamo che hai una sessione tra 1 ora:\n📅 %s\n🕐 %s\n\nTi aspettiamo! 💪",
		clientName, start.Format("02/01/2006"), slot)
}

func resetMessage(clientName, token string) string {
	return fmt.Sprintf(
		"🔐 Reimposta la tua password\n\nCiao %s,\n\nUsa questo codice per reimpostare la password:\n%s\n\nIl codice scade tra 1 ora. Se non hai richiesto tu il reset, ignora questo messaggio.",
		clientName, token)
}
