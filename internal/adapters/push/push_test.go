package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pralapin/school-service/internal/adapters/observability"
	"github.com/pralapin/school-service/internal/core/ports"
)

func TestFCM_Send(t *testing.T) {
	var mu sync.Mutex
	var got []fcmRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req fcmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		got = append(got, req)
		mu.Unlock()
		if strings.HasPrefix(req.Message.Token, "stale") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"status":"NOT_FOUND"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"name":"projects/p/messages/1"}`))
	}))
	defer srv.Close()

	sender := NewFCM(srv.Client(), srv.URL, observability.NopLogger())
	res, err := sender.Send(context.Background(), ports.PushMessage{
		Tokens: []string{"tok-1", "tok-2", "stale-1"},
		Title:  "Attendance Alert",
		Body:   "Asha was marked absent today",
		Data:   map[string]string{"type": "attendance"},
	})
	require.NoError(t, err)
	assert.Equal(t, ports.BatchResult{SuccessCount: 2, FailureCount: 1}, res)

	require.Len(t, got, 3)
	for _, req := range got {
		assert.Equal(t, "Attendance Alert", req.Message.Notification.Title)
		assert.Equal(t, "attendance", req.Message.Data["type"])
	}
}

func TestFCM_RejectsOversizedBatch(t *testing.T) {
	sender := NewFCM(http.DefaultClient, "http://unused", observability.NopLogger())
	_, err := sender.Send(context.Background(), ports.PushMessage{Tokens: make([]string, ports.MaxPushBatch+1)})
	assert.Error(t, err)
}

func TestDisabled(t *testing.T) {
	res, err := Disabled{}.Send(context.Background(), ports.PushMessage{Tokens: []string{"a"}})
	require.NoError(t, err)
	assert.Zero(t, res)
}

type stubSender struct {
	res ports.BatchResult
	err error
}

func (s stubSender) Send(context.Context, ports.PushMessage) (ports.BatchResult, error) {
	return s.res, s.err
}

func TestInstrumented(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	ok := NewInstrumented(stubSender{res: ports.BatchResult{SuccessCount: 3, FailureCount: 1}}, "fcm",
		metrics.PushBatchesTotal, metrics.PushMessagesTotal)
	res, err := ok.Send(context.Background(), ports.PushMessage{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SuccessCount)

	broken := NewInstrumented(stubSender{err: errors.New("broker down")}, "rabbitmq",
		metrics.PushBatchesTotal, metrics.PushMessagesTotal)
	_, err = broken.Send(context.Background(), ports.PushMessage{})
	assert.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PushBatchesTotal.WithLabelValues("fcm", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PushBatchesTotal.WithLabelValues("rabbitmq", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.PushMessagesTotal.WithLabelValues("fcm", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PushMessagesTotal.WithLabelValues("fcm", "failure")))
}
