// Package notify fans new postings out to subscribers over mail and push.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobalert-crawler/internal/metrics"
	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

const (
	channelEmail = "email"
	channelPush  = "push"
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Config controls message rendering.
type Config struct {
	ImageURL       string
	TopicBroadcast bool
}

// Summary counts dispatch outcomes for one Notify call.
type Summary struct {
	Subscribers int
	EmailSent   int
	EmailFailed int
	PushSent    int
	PushFailed  int
}

// Fanout dispatches notifications for a category. A nil channel disables it.
type Fanout struct {
	cfg       Config
	directory posting.Directory
	mail      posting.MailChannel
	push      posting.PushChannel
	clock     posting.Clock
	logger    *zap.Logger
}

// New constructs a Fanout.
func New(
	cfg Config,
	directory posting.Directory,
	mail posting.MailChannel,
	push posting.PushChannel,
	clock posting.Clock,
	logger *zap.Logger,
) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{
		cfg:       cfg,
		directory: directory,
		mail:      mail,
		push:      push,
		clock:     clock,
		logger:    logger,
	}
}

// TopicSender broadcasts one push message to every device subscribed to a
// topic.
type TopicSender interface {
	SendToTopic(ctx context.Context, topic string, n posting.PushNotification, data map[string]string) (string, error)
}

// Notify sends postings to every subscriber interested in category. Each
// subscriber and channel is dispatched independently and failures are only
// logged and counted. With TopicBroadcast set and a push channel that
// implements TopicSender, the category topic also receives one message.
func (f *Fanout) Notify(ctx context.Context, category string, postings []posting.Posting) Summary {
	var summary Summary
	if len(postings) == 0 {
		return summary
	}

	notification, data, err := PushMessage(category, postings, f.cfg.ImageURL, f.clock.Now())
	if err != nil {
		f.logger.Error("build push message failed", zap.String("category", category), zap.Error(err))
	}
	pushReady := err == nil && f.push != nil

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	record := func(channel string, failed bool) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case channel == channelEmail && failed:
			summary.EmailFailed++
		case channel == channelEmail:
			summary.EmailSent++
		case failed:
			summary.PushFailed++
		default:
			summary.PushSent++
		}
	}

	if topics, ok := f.push.(TopicSender); ok && pushReady && f.cfg.TopicBroadcast {
		wg.Go(func() {
			_, err := topics.SendToTopic(ctx, category, notification, data)
			f.observe(category, channelPush, "topic:"+category, err)
			record(channelPush, err != nil)
		})
	}

	subscribers, err := f.directory.FindByInterest(ctx, category)
	if err != nil {
		f.logger.Error("resolve subscribers failed", zap.String("category", category), zap.Error(err))
	}
	summary.Subscribers = len(subscribers)

	var subject, text, html string
	if len(subscribers) > 0 && f.mail != nil {
		subject = Subject(category)
		text = RenderEmail(category, postings)
		if html, err = RenderHTML(text); err != nil {
			f.logger.Warn("html rendering failed, sending text only", zap.String("category", category), zap.Error(err))
		}
	}

	for _, sub := range subscribers {
		if f.mail != nil && sub.Email != "" && sub.Settings.EmailEnabled() {
			wg.Go(func() {
				err := f.mail.Send(ctx, sub.Email, subject, text, html)
				f.observe(category, channelEmail, redact(sub.Email), err)
				record(channelEmail, err != nil)
			})
		}
		if pushReady && len(sub.PushTokens) > 0 && sub.Settings.PushEnabled() {
			wg.Go(func() {
				_, err := f.push.Send(ctx, sub.PushTokens, notification, data)
				f.observe(category, channelPush, sub.ID, err)
				record(channelPush, err != nil)
			})
		}
	}
	wg.Wait()

	f.logger.Info("notifications dispatched",
		zap.String("category", category),
		zap.Int("postings", len(postings)),
		zap.Int("subscribers", summary.Subscribers),
		zap.Int("email_sent", summary.EmailSent),
		zap.Int("email_failed", summary.EmailFailed),
		zap.Int("push_sent", summary.PushSent),
		zap.Int("push_failed", summary.PushFailed),
	)
	return summary
}

func (f *Fanout) observe(category, channel, recipient string, err error) {
	if err == nil {
		metrics.ObserveNotification(channel, outcomeOK)
		return
	}
	metrics.ObserveNotification(channel, outcomeError)
	f.logger.Warn("notification failed",
		zap.String("category", category),
		zap.String("channel", channel),
		zap.String("recipient", recipient),
		zap.Error(err),
	)
}
