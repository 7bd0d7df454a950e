package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/tabline/internal/activity"
	"github.com/Additional-Code/tabline/internal/config"
	"github.com/Additional-Code/tabline/internal/entity"
	"github.com/Additional-Code/tabline/internal/messaging"
)

type captureStore struct {
	logs []entity.ActivityLog
	err  error
}

func (c *captureStore) Insert(_ context.Context, logs []entity.ActivityLog) error {
	if c.err != nil {
		return c.err
	}
	c.logs = append(c.logs, logs...)
	return nil
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Messaging.Kafka.Topic = "tabline.activity"
	return cfg
}

func TestActivityRecordedHandlerPersists(t *testing.T) {
	store := &captureStore{}
	reg := NewActivityRecordedHandler(zaptest.NewLogger(t), testConfig(), store)
	assert.Equal(t, "tabline.activity", reg.Topic)

	at := time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC)
	payload, err := activity.Encode(activity.Entry{Action: activity.ActionMergeTables, TableName: "Table 4", Details: "Orders merged", At: at})
	require.NoError(t, err)

	require.NoError(t, reg.Handler(context.Background(), messaging.Message{Topic: reg.Topic, Value: payload}))
	require.Len(t, store.logs, 1)
	assert.Equal(t, activity.ActionMergeTables, store.logs[0].Action)
	assert.Equal(t, "Table 4", store.logs[0].TableName)
	assert.True(t, at.Equal(store.logs[0].CreatedAt))
}

func TestActivityRecordedHandlerDropsMalformed(t *testing.T) {
	store := &captureStore{}
	reg := NewActivityRecordedHandler(zaptest.NewLogger(t), testConfig(), store)

	assert.NoError(t, reg.Handler(context.Background(), messaging.Message{Value: []byte("{not json")}))
	assert.NoError(t, reg.Handler(context.Background(), messaging.Message{Value: []byte(`{"details":"no action"}`)}))
	assert.Empty(t, store.logs)
}

func TestActivityRecordedHandlerSurfacesStoreErrors(t *testing.T) {
	store := &captureStore{err: errors.New("database is locked")}
	reg := NewActivityRecordedHandler(zaptest.NewLogger(t), testConfig(), store)

	payload, err := activity.Encode(activity.Entry{Action: activity.ActionAddItem})
	require.NoError(t, err)
	assert.Error(t, reg.Handler(context.Background(), messaging.Message{Value: payload, Time: time.Now()}))
}
