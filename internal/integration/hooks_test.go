package integration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/inventory"
)

type recordingInvalidator struct {
	accounts []int64
	err      error
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, accountID int64) error {
	r.accounts = append(r.accounts, accountID)
	return r.err
}

type recordingConn struct {
	msgs []*nats.Msg
	err  error
}

func (r *recordingConn) PublishMsg(msg *nats.Msg) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func sampleEvent() inventory.MovementPostedEvent {
	return inventory.MovementPostedEvent{
		AccountID:  42,
		ProductID:  "SKU-1",
		TxID:       7,
		TxCode:     "EXP-20240101-ABCDEF12",
		Kind:       inventory.EntryReverseExport,
		Quantity:   decimal.RequireFromString("5"),
		UnitCost:   decimal.RequireFromString("12"),
		BalanceQty: decimal.RequireFromString("105"),
		Seq:        3,
		PostedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestPublisherEnvelope(t *testing.T) {
	conn := &recordingConn{}
	p := NewPublisher(conn, "", "stockroom")

	require.NoError(t, p.PublishMovement(context.Background(), sampleEvent()))
	require.Len(t, conn.msgs, 1)
	msg := conn.msgs[0]
	require.Equal(t, "stockroom.movements.reverse_export", msg.Subject)
	require.Equal(t, "42", msg.Header.Get("account_id"))
	require.Equal(t, EventMovementPosted, msg.Header.Get("event_type"))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	require.Equal(t, env.ID.String(), msg.Header.Get("event_id"))
	require.Equal(t, int64(42), env.AccountID)
	require.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), env.OccurredAt)

	var payload inventory.MovementPostedEvent
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	require.Equal(t, "SKU-1", payload.ProductID)
	require.True(t, payload.BalanceQty.Equal(decimal.RequireFromString("105")))
}

func TestPublisherCustomSubjectAndCancelledContext(t *testing.T) {
	conn := &recordingConn{}
	p := NewPublisher(conn, "acme.stock.", "stockroom")
	evt := sampleEvent()
	evt.Kind = inventory.EntryImport
	require.NoError(t, p.PublishMovement(context.Background(), evt))
	require.Equal(t, "acme.stock.import", conn.msgs[0].Subject)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.PublishMovement(ctx, evt), context.Canceled)
	require.Len(t, conn.msgs, 1)
}

func TestHooksFanOut(t *testing.T) {
	inv := &recordingInvalidator{}
	conn := &recordingConn{}
	h := NewHooks(inv, NewPublisher(conn, "", "stockroom"), nil)

	require.NoError(t, h.HandleMovementPosted(context.Background(), sampleEvent()))
	require.Equal(t, []int64{42}, inv.accounts)
	require.Len(t, conn.msgs, 1)
}

func TestHooksAttemptEveryConsumer(t *testing.T) {
	cacheErr := errors.New("redis down")
	busErr := errors.New("nats down")
	inv := &recordingInvalidator{err: cacheErr}
	h := NewHooks(inv, NewPublisher(&recordingConn{err: busErr}, "", "stockroom"), nil)

	err := h.HandleMovementPosted(context.Background(), sampleEvent())
	require.ErrorIs(t, err, cacheErr)
	require.ErrorIs(t, err, busErr)
	require.Len(t, inv.accounts, 1)
}

func TestNilHooks(t *testing.T) {
	var h *Hooks
	require.NoError(t, h.HandleMovementPosted(context.Background(), sampleEvent()))
	require.NoError(t, NewHooks(nil, nil, nil).HandleMovementPosted(context.Background(), sampleEvent()))
}
