package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestClientEnqueueOverdueScan(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	asOf := time.Date(2026, 8, 31, 1, 0, 0, 0, time.UTC)
	info, err := client.EnqueueOverdueScan(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, TaskInvoiceOverdueScan, info.Type)
	require.Equal(t, QueueDefault, info.Queue)

	var payload OverdueScanPayload
	require.NoError(t, json.Unmarshal(info.Payload, &payload))
	require.True(t, payload.AsOf.Equal(asOf))
}
