package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"

	"github.com/pralapin/school-service/internal/config"
	"github.com/pralapin/school-service/internal/core/ports"
)

const (
	fcmScope       = "https://www.googleapis.com/auth/firebase.messaging"
	fcmEndpoint    = "https://fcm.googleapis.com/v1/projects/%s/messages:send"
	maxConcurrency = 20
)

// FCM delivers through the Firebase Cloud Messaging HTTP v1 API, one request
// per device token.
type FCM struct {
	client   *http.Client
	endpoint string
	cb       *gobreaker.CircuitBreaker
	logger   *logrus.Logger
}

var _ ports.PushSender = (*FCM)(nil)

// NewFCMFromFile loads a service-account JSON file.
func NewFCMFromFile(ctx context.Context, path string, logger *logrus.Logger) (*FCM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read firebase credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("parse firebase credentials: %w", err)
	}
	if creds.ProjectID == "" {
		return nil, fmt.Errorf("firebase credentials carry no project_id")
	}
	return NewFCM(oauth2.NewClient(ctx, creds.TokenSource), fmt.Sprintf(fcmEndpoint, creds.ProjectID), logger), nil
}

// NewFCM builds a sender over an already-authorized client.
func NewFCM(client *http.Client, endpoint string, logger *logrus.Logger) *FCM {
	return &FCM{
		client:   client,
		endpoint: endpoint,
		cb:       config.NewCircuitBreaker("FCM"),
		logger:   logger,
	}
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

// Send delivers one batch. Per-token failures are counted, not returned.
func (f *FCM) Send(ctx context.Context, msg ports.PushMessage) (ports.BatchResult, error) {
	if len(msg.Tokens) > ports.MaxPushBatch {
		return ports.BatchResult{}, fmt.Errorf("batch of %d exceeds %d tokens", len(msg.Tokens), ports.MaxPushBatch)
	}

	var success, failure int64
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrency)

	for _, token := range msg.Tokens {
		token := token
		eg.Go(func() error {
			if err := f.sendOne(ctx, token, msg); err != nil {
				atomic.AddInt64(&failure, 1)
				f.logger.WithError(err).Debug("fcm: delivery failed")
				return nil
			}
			atomic.AddInt64(&success, 1)
			return nil
		})
	}
	_ = eg.Wait()

	return ports.BatchResult{SuccessCount: int(success), FailureCount: int(failure)}, nil
}

func (f *FCM) sendOne(ctx context.Context, token string, msg ports.PushMessage) error {
	body, err := json.Marshal(fcmRequest{Message: fcmMessage{
		Token:        token,
		Notification: fcmNotification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	}})
	if err != nil {
		return err
	}

	_, err = f.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("fcm status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
		}
		return nil, nil
	})
	return err
}
