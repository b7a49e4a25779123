package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"clipdub/internal/logging"
)

const (
	defaultStatusBuffer = 32
	publishTimeout      = 10 * time.Second
)

type statusUpdate struct {
	chatID int64
	text   string
}

// statusPublisher drains progress updates through a single background
// goroutine so stage code never blocks on chat delivery.
type statusPublisher struct {
	logger  *slog.Logger
	sender  Sender
	updates chan statusUpdate

	once sync.Once
	done chan struct{}
}

func newStatusPublisher(logger *slog.Logger, sender Sender, buffer int) *statusPublisher {
	if buffer <= 0 {
		buffer = defaultStatusBuffer
	}
	p := &statusPublisher{
		logger:  logger,
		sender:  sender,
		updates: make(chan statusUpdate, buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *statusPublisher) publish(chatID int64, text string) {
	select {
	case p.updates <- statusUpdate{chatID: chatID, text: text}:
	default:
		// A stalled chat connection must not back-pressure the pipeline.
		p.logger.Debug("progress update dropped, buffer full", logging.Int64("chat_id", chatID))
	}
}

func (p *statusPublisher) run() {
	defer close(p.done)
	for update := range p.updates {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if _, err := p.sender.SendMessage(ctx, update.chatID, update.text); err != nil {
			p.logger.Debug("progress update failed", logging.Int64("chat_id", update.chatID), logging.Error(err))
		}
		cancel()
	}
}

// close stops accepting updates and waits for queued ones to drain.
func (p *statusPublisher) close() {
	p.once.Do(func() {
		close(p.updates)
		<-p.done
	})
}
