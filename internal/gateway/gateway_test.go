package gateway

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSandbox_ChargeAndRefund(t *testing.T) {
	sb := NewSandbox()
	ctx := context.Background()

	result, err := sb.Charge(ctx, ChargeRequest{
		PaymentID: uuid.New(),
		Amount:    100000,
		Currency:  "IQD",
	})
	assert.NoError(t, err)
	assert.Equal(t, "sandbox", result.Gateway)
	assert.True(t, strings.HasPrefix(result.TransactionID, "sandbox-"))

	err = sb.Refund(ctx, RefundRequest{TransactionID: result.TransactionID, Amount: 40000})
	assert.NoError(t, err)

	// Повторный возврат остатка проходит, превышение — нет
	err = sb.Refund(ctx, RefundRequest{TransactionID: result.TransactionID, Amount: 70000})
	assert.Error(t, err)

	err = sb.Refund(ctx, RefundRequest{TransactionID: result.TransactionID, Amount: 60000})
	assert.NoError(t, err)
}

func TestSandbox_Charge_InvalidAmount(t *testing.T) {
	sb := NewSandbox()

	_, err := sb.Charge(context.Background(), ChargeRequest{Amount: 0})
	assert.Error(t, err)
}

func TestSandbox_Refund_UnknownTransaction(t *testing.T) {
	sb := NewSandbox()

	err := sb.Refund(context.Background(), RefundRequest{TransactionID: "sandbox-missing", Amount: 100})
	assert.Error(t, err)
}
