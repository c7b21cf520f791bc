// Package push delivers notifications through Firebase Cloud Messaging.
package push

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
	minTokenLen       = 50
	maxTokenLen       = 200
	maxTitle          = 100
	maxBody           = 500
)

// Config selects the Firebase project.
type Config struct {
	ProjectID       string
	CredentialsFile string
	MaxRetries      int
	RetryDelay      time.Duration
}

type messenger interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
}

// Channel implements posting.PushChannel over FCM.
type Channel struct {
	client     messenger
	maxRetries int
	retryDelay time.Duration
	retryable  func(error) bool
	now        func() time.Time
	logger     *zap.Logger
}

// New initializes a Firebase app and its messaging client.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Channel, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return NewWithClient(cfg, client, logger), nil
}

// NewWithClient constructs a Channel over an existing messaging client
// (primarily for testing).
func NewWithClient(cfg Config, client messenger, logger *zap.Logger) *Channel {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		client:     client,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		retryable:  isRetryable,
		now:        time.Now,
		logger:     logger,
	}
}

// ValidTokens keeps tokens whose length is plausible for an FCM registration
// token.
func ValidTokens(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if len(t) > minTokenLen && len(t) < maxTokenLen {
			out = append(out, t)
		}
	}
	return out
}

// Send multicasts n to the valid subset of tokens. A timestamp is added to
// data. Failures are wrapped in posting.ErrChannel.
func (c *Channel) Send(ctx context.Context, tokens []string, n posting.PushNotification, data map[string]string) (posting.PushResult, error) {
	valid := ValidTokens(tokens)
	if len(valid) == 0 {
		return posting.PushResult{}, fmt.Errorf("%w: no valid push tokens", posting.ErrChannel)
	}
	if n.Title == "" || n.Body == "" {
		return posting.PushResult{}, fmt.Errorf("%w: notification title and body are required", posting.ErrChannel)
	}

	msg := &messaging.MulticastMessage{
		Tokens:       valid,
		Notification: c.notification(n),
		Data:         c.data(data),
	}
	var resp *messaging.BatchResponse
	err := c.retry(ctx, func() error {
		var err error
		resp, err = c.client.SendEachForMulticast(ctx, msg)
		return err
	})
	if err != nil {
		return posting.PushResult{}, errors.Join(posting.ErrChannel, fmt.Errorf("send multicast: %w", err))
	}

	for i, r := range resp.Responses {
		if r.Success || i >= len(valid) {
			continue
		}
		c.logger.Debug("push token rejected", zap.String("token_prefix", valid[i][:10]), zap.Error(r.Error))
	}
	result := posting.PushResult{SuccessCount: resp.SuccessCount, FailureCount: resp.FailureCount}
	if result.SuccessCount == 0 && result.FailureCount > 0 {
		return result, fmt.Errorf("%w: all %d push tokens failed", posting.ErrChannel, result.FailureCount)
	}
	return result, nil
}

// SendToTopic publishes n to every device subscribed to topic.
func (c *Channel) SendToTopic(ctx context.Context, topic string, n posting.PushNotification, data map[string]string) (string, error) {
	id, err := c.client.Send(ctx, &messaging.Message{
		Topic:        topic,
		Notification: c.notification(n),
		Data:         c.data(data),
	})
	if err != nil {
		return "", errors.Join(posting.ErrChannel, fmt.Errorf("send topic message: %w", err))
	}
	return id, nil
}

// SubscribeToTopic adds tokens to topic.
func (c *Channel) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (posting.PushResult, error) {
	resp, err := c.client.SubscribeToTopic(ctx, tokens, topic)
	if err != nil {
		return posting.PushResult{}, errors.Join(posting.ErrChannel, fmt.Errorf("subscribe to topic: %w", err))
	}
	return posting.PushResult{SuccessCount: resp.SuccessCount, FailureCount: resp.FailureCount}, nil
}

// UnsubscribeFromTopic removes tokens from topic.
func (c *Channel) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (posting.PushResult, error) {
	resp, err := c.client.UnsubscribeFromTopic(ctx, tokens, topic)
	if err != nil {
		return posting.PushResult{}, errors.Join(posting.ErrChannel, fmt.Errorf("unsubscribe from topic: %w", err))
	}
	return posting.PushResult{SuccessCount: resp.SuccessCount, FailureCount: resp.FailureCount}, nil
}

func (c *Channel) notification(n posting.PushNotification) *messaging.Notification {
	return &messaging.Notification{
		Title:    truncate(n.Title, maxTitle),
		Body:     truncate(n.Body, maxBody),
		ImageURL: n.ImageURL,
	}
}

func (c *Channel) data(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	maps.Copy(out, in)
	if _, ok := out["timestamp"]; !ok {
		out["timestamp"] = c.now().UTC().Format(time.RFC3339)
	}
	return out
}

func (c *Channel) retry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt >= c.maxRetries || !c.retryable(err) {
			return err
		}
		c.logger.Info("retrying push send", zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(c.retryDelay):
		}
	}
}

var retryableCodes = []string{"UNAVAILABLE", "DEADLINE_EXCEEDED", "INTERNAL", "RESOURCE_EXHAUSTED"}

func isRetryable(err error) bool {
	if errorutils.IsUnavailable(err) ||
		errorutils.IsDeadlineExceeded(err) ||
		errorutils.IsInternal(err) ||
		errorutils.IsResourceExhausted(err) {
		return true
	}
	msg := err.Error()
	for _, code := range retryableCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
