package event

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/declaration"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSubmittedDeclaration(t *testing.T) *declaration.Declaration {
	t.Helper()
	company := uuid.New()
	d, err := declaration.NewDeclaration("KK-20260101-00000042", uuid.New(), "603", "Quarter batch", declaration.IssuingOrganization{CompanyID: &company})
	require.NoError(t, err)
	require.NoError(t, d.Submit(d.OwnerID))
	return d
}

func TestEventSerializer_RegisteredTypes(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterDeclarationEvents(serializer)

	assert.Equal(t, []string{
		declaration.EventTypeDeclarationStatusChanged,
		declaration.EventTypePaymentConfirmed,
	}, serializer.RegisteredTypes())
	assert.True(t, serializer.IsRegistered(declaration.EventTypePaymentConfirmed))
	assert.False(t, serializer.IsRegistered("SalesOrderCreated"))
}

func TestEventSerializer_Envelope(t *testing.T) {
	serializer := NewEventSerializer()
	d := newSubmittedDeclaration(t)
	event := declaration.NewDeclarationStatusChangedEvent(d, declaration.StatusDraft, d.OwnerID)

	data, err := serializer.Serialize(event)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, event.EventID(), env.ID)
	assert.Equal(t, declaration.EventTypeDeclarationStatusChanged, env.Type)
	assert.Equal(t, d.ID, env.AggregateID)
	assert.Equal(t, declaration.AggregateTypeDeclaration, env.AggregateType)
	assert.Contains(t, string(env.Payload), `"new_status":"submitted"`)
}

func TestEventSerializer_RoundTrip(t *testing.T) {
	serializer := NewEventSerializer()
	RegisterDeclarationEvents(serializer)
	d := newSubmittedDeclaration(t)

	t.Run("status changed", func(t *testing.T) {
		event := declaration.NewDeclarationStatusChangedEvent(d, declaration.StatusDraft, d.OwnerID)
		data, err := serializer.Serialize(event)
		require.NoError(t, err)

		decoded, err := serializer.Deserialize(data)
		require.NoError(t, err)
		got, ok := decoded.(*declaration.DeclarationStatusChangedEvent)
		require.True(t, ok)
		assert.Equal(t, event.EventID(), got.EventID())
		assert.Equal(t, declaration.StatusDraft, got.OldStatus)
		assert.Equal(t, declaration.StatusSubmitted, got.NewStatus)
		assert.Equal(t, d.Code, got.Declaration.Code)
	})

	t.Run("payment confirmed", func(t *testing.T) {
		p, err := declaration.NewPayment("TT-1", d.ID, decimal.NewFromInt(631800), declaration.PaymentMethodBankTransfer, d.OwnerID, 0)
		require.NoError(t, err)
		event := declaration.NewPaymentConfirmedEvent(p, d)

		data, err := serializer.Serialize(event)
		require.NoError(t, err)
		decoded, err := serializer.Deserialize(data)
		require.NoError(t, err)

		got, ok := decoded.(*declaration.PaymentConfirmedEvent)
		require.True(t, ok)
		assert.Equal(t, "TT-1", got.PaymentCode)
		assert.True(t, got.Amount.Equal(decimal.NewFromInt(631800)))
	})
}

func TestEventSerializer_Deserialize_Errors(t *testing.T) {
	serializer := NewEventSerializer()

	_, err := serializer.Deserialize([]byte(`{"type":"Unknown","payload":{}}`))
	assert.ErrorContains(t, err, "unknown event type")

	_, err = serializer.Deserialize([]byte(`not json`))
	assert.ErrorContains(t, err, "failed to unmarshal envelope")
}
