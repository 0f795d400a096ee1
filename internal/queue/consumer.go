package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/iliyamo/jewelry-storefront/internal/tenant"
)

// ConfigLoader resolves a client id to its configuration.
type ConfigLoader interface {
	Load(id string) (tenant.ClientConfig, error)
}

// SendFunc delivers a message using the client's SMTP settings.
type SendFunc func(cfg tenant.ClientConfig, m *gomail.Message) error

// SMTPSend dials the client's mail server and sends m.
func SMTPSend(cfg tenant.ClientConfig, m *gomail.Message) error {
	d := gomail.NewDialer(cfg.EmailHost, cfg.EmailPort, cfg.EmailUser, cfg.EmailPass)
	return d.DialAndSend(m)
}

// Welcomer turns user.registered events into welcome mails for clients
// that enable them.
type Welcomer struct {
	Configs ConfigLoader
	Send    SendFunc
	Log     *zap.Logger
}

// Handle processes one delivery body.  A returned error means the message
// is rejected.
func (w *Welcomer) Handle(body []byte) error {
	var ev UserRegisteredEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	cfg, err := w.Configs.Load(ev.ClientID)
	if err != nil {
		return fmt.Errorf("load client %q: %w", ev.ClientID, err)
	}
	log := w.Log.With(zap.String("client", ev.ClientID), zap.String("user_id", ev.UserID))
	if !cfg.WelcomeEmail || !cfg.HasSMTP() {
		log.Info("user registered")
		return nil
	}
	if err := w.Send(cfg, welcomeMessage(cfg, ev)); err != nil {
		return fmt.Errorf("send welcome mail: %w", err)
	}
	log.Info("welcome mail sent", zap.String("email", ev.Email))
	return nil
}

func welcomeMessage(cfg tenant.ClientConfig, ev UserRegisteredEvent) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", cfg.EmailFrom)
	m.SetAddressHeader("To", ev.Email, ev.Name)
	m.SetHeader("Subject", "Welcome to "+cfg.Name)
	m.SetBody("text/plain", fmt.Sprintf("Hi %s,\n\nThanks for creating an account at %s.\n", ev.Name, cfg.Name))
	m.AddAlternative("text/html", fmt.Sprintf("<p>Hi %s,</p><p>Thanks for creating an account at <strong>%s</strong>.</p>",
		html.EscapeString(ev.Name), html.EscapeString(cfg.Name)))
	return m
}

// StartWelcomeConsumer consumes the user.registered queue until ctx is
// cancelled, reconnecting with exponential back-off (capped at 30s) when
// the broker is unreachable or the channel closes.
func StartWelcomeConsumer(ctx context.Context, url string, w *Welcomer) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			w.Log.Warn("welcome-consumer: dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, w)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.Log.Warn("welcome-consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, w *Welcomer) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		w.Log.Warn("welcome-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(UserRegisteredQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(UserRegisteredQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := w.Handle(d.Body); err != nil {
				w.Log.Warn("welcome-consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // no requeue, avoids tight redelivery loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
