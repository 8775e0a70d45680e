package consumerWorker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"masterclass/internal/dto"
	"masterclass/internal/mailer"
	"masterclass/internal/model"
	"masterclass/internal/rabbit"
	"masterclass/internal/repo"
	"masterclass/internal/ticket"
)

var mailRetry = retry.Strategy{Attempts: 3, Delay: 2 * time.Second, Backoff: 2}

// TicketSender delivers a rendered ticket to the registrant.
type TicketSender interface {
	SendTicketEmail(reg *model.Registration, qrPNG []byte) error
}

var _ TicketSender = (*mailer.Mailer)(nil)

// Reader consumes ticket delivery messages: it renders the QR ticket,
// emails it, and marks the registration as sent. Registration
// persistence already happened; nothing here can undo it.
type Reader struct {
	RMQ    *rabbit.Client
	repo   repo.Repository
	mail   TicketSender
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq *rabbit.Client, repo repo.Repository, mail TicketSender) *Reader {
	return &Reader{
		RMQ:  rmq,
		repo: repo,
		mail: mail,
		done: make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("ticket delivery worker started")

	go func() {
		defer close(r.done)

		if err := r.RMQ.Consume(func(body []byte) error {
			return r.handleMessage(cctx, body)
		}); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("ticket delivery worker stopped by context")
	}()
}

// handleMessage processes one delivery request. A non-nil return
// requeues the message.
func (r *Reader) handleMessage(ctx context.Context, body []byte) error {
	var msg dto.TicketMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		zlog.Logger.Error().
			Err(err).
			Msgf("Failed to unmarshal message: %s", string(body))
		// Poison message, do not requeue it forever.
		return nil
	}

	zlog.Logger.Info().
		Int("registration_id", msg.RegistrationID).
		Msg("received ticket delivery message")

	reg, err := r.repo.GetRegistrationByID(ctx, msg.RegistrationID)
	if err != nil {
		if errors.Is(err, repo.ErrRegistrationNotFound) {
			zlog.Logger.Warn().
				Int("registration_id", msg.RegistrationID).
				Msg("registration deleted before ticket delivery, skipping")
			return nil
		}
		zlog.Logger.Error().
			Err(err).
			Int("registration_id", msg.RegistrationID).
			Msg("failed to load registration for ticket delivery")
		return err
	}

	if reg.TicketSent {
		zlog.Logger.Info().
			Int("registration_id", reg.ID).
			Msg("ticket already sent, skipping")
		return nil
	}

	qrPNG, err := ticket.GeneratePNG(reg.ID, reg.Name, reg.Email)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Int("registration_id", reg.ID).
			Msg("failed to generate QR ticket")
		return nil
	}

	sendErr := retry.Do(func() error {
		return r.mail.SendTicketEmail(reg, qrPNG)
	}, mailRetry)
	if sendErr != nil {
		// Delivery is best effort: the registration stays committed
		// and the admin can re-trigger delivery.
		zlog.Logger.Warn().
			Err(sendErr).
			Int("registration_id", reg.ID).
			Str("email", reg.Email).
			Msg("giving up on ticket email after retries")
		return nil
	}

	marked, err := r.repo.MarkTicketSentTx(ctx, reg.ID)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Int("registration_id", reg.ID).
			Msg("failed to mark ticket as sent")
		return err
	}
	if !marked {
		zlog.Logger.Info().
			Int("registration_id", reg.ID).
			Msg("ticket was marked sent concurrently")
	}

	return nil
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
