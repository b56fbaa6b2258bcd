package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newHeldEscrow(amount float64) *Escrow {
	return &Escrow{
		Amount:     amount,
		HeldAmount: amount,
		Status:     EscrowStatusHeld,
	}
}

func TestEscrow_ApplyRelease_Conservation(t *testing.T) {
	now := time.Now()

	e := newHeldEscrow(1000000)
	e.ApplyRelease(400000, now)
	assert.True(t, e.ConservationHolds())
	assert.Equal(t, EscrowStatusPartiallyReleased, e.Status)
	assert.Equal(t, float64(600000), e.HeldAmount)

	e.ApplyRelease(600000, now)
	assert.True(t, e.ConservationHolds())
	assert.Equal(t, EscrowStatusReleased, e.Status)
	assert.NotNil(t, e.ReleasedAt)
	assert.Equal(t, float64(0), e.HeldAmount)
	assert.Equal(t, float64(1000000), e.ReleasedAmount)
}

func TestEscrow_ApplyRefund_Conservation(t *testing.T) {
	now := time.Now()

	e := newHeldEscrow(500000)
	e.ApplyRefund(500000, now)
	assert.True(t, e.ConservationHolds())
	assert.Equal(t, EscrowStatusRefunded, e.Status)
	assert.NotNil(t, e.RefundedAt)
}

func TestEscrow_ReleaseThenRefundRemainder(t *testing.T) {
	now := time.Now()

	e := newHeldEscrow(300000)
	e.ApplyRelease(200000, now)
	e.ApplyRefund(100000, now)

	assert.True(t, e.ConservationHolds())
	// Остаток после частичного освобождения возвращён: расчёты завершены
	assert.Equal(t, EscrowStatusReleased, e.Status)
	assert.Equal(t, float64(0), e.HeldAmount)
	assert.Equal(t, float64(200000), e.ReleasedAmount)
	assert.Equal(t, float64(100000), e.RefundedAmount)
}

func TestEscrow_PartialRefundKeepsHeld(t *testing.T) {
	now := time.Now()

	e := newHeldEscrow(300000)
	e.ApplyRefund(100000, now)

	assert.True(t, e.ConservationHolds())
	assert.Equal(t, EscrowStatusHeld, e.Status)
	assert.Equal(t, float64(200000), e.HeldAmount)
}

func TestEscrow_ApplyCancel(t *testing.T) {
	now := time.Now()

	e := newHeldEscrow(250000)
	refunded := e.ApplyCancel(now)

	assert.Equal(t, float64(250000), refunded)
	assert.True(t, e.ConservationHolds())
	assert.Equal(t, EscrowStatusCancelled, e.Status)
	assert.True(t, e.IsTerminal())
}

func TestEscrow_Movable(t *testing.T) {
	e := newHeldEscrow(1000)
	assert.True(t, e.Movable(false))

	e.Status = EscrowStatusPartiallyReleased
	assert.True(t, e.Movable(false))

	// Спорный escrow двигается только путём разрешения спора
	e.Status = EscrowStatusDisputed
	assert.False(t, e.Movable(false))
	assert.True(t, e.Movable(true))

	for _, status := range []string{EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusCancelled, EscrowStatusPending} {
		e.Status = status
		assert.False(t, e.Movable(false), status)
		assert.False(t, e.Movable(true), status)
	}
}

func TestPlatformFee(t *testing.T) {
	assert.Equal(t, float64(100000), PlatformFee(1000000, 10))
	assert.Equal(t, float64(11), PlatformFee(105, 10))
	assert.Equal(t, float64(0), PlatformFee(1000, 0))
	assert.Equal(t, float64(1), PlatformFee(1, 10))
	assert.Equal(t, float64(1000), PlatformFee(1000, 100))
}
