package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReceiptStoresPositiveQuantity(t *testing.T) {
	level := newLevel(t, 0, 0)
	ref := MovementRef{Type: "PurchaseOrder", Number: "PO-001"}
	batchID := uuid.New()

	m, err := NewReceipt(level, decimal.NewFromInt(10), decimal.NewFromInt(3), ref, "alice", &batchID)
	require.NoError(t, err)

	assert.Equal(t, MovementTypeReceive, m.MovementType)
	assert.True(t, m.Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, m.UnitCost.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, "PurchaseOrder", m.ReferenceType)
	assert.Equal(t, "PO-001", m.ReferenceNumber)
	assert.Equal(t, "alice", m.CreatedBy)
	require.NotNil(t, m.BatchID)
	assert.Equal(t, batchID, *m.BatchID)
	assert.Equal(t, level.ItemID, m.ItemID)
	assert.Equal(t, level.WarehouseID, m.WarehouseID)

	_, err = NewReceipt(level, decimal.Zero, decimal.Zero, ref, "alice", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewIssueStoresNegativeQuantityAtCurrentCost(t *testing.T) {
	level := newLevel(t, 100, 12)
	ref := MovementRef{Type: "Sale", Number: "SO-001"}

	m, err := NewIssue(level, decimal.NewFromInt(40), ref, "bob")
	require.NoError(t, err)

	assert.Equal(t, MovementTypeIssue, m.MovementType)
	assert.True(t, m.Quantity.Equal(decimal.NewFromInt(-40)))
	assert.True(t, m.UnitCost.Equal(decimal.NewFromInt(12)))

	_, err = NewIssue(level, decimal.NewFromInt(-1), ref, "bob")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewAdjustmentKeepsSign(t *testing.T) {
	level := newLevel(t, 10, 5)
	ref := MovementRef{Type: "StockAdjustment", Number: "ADJ-001"}

	up, err := NewAdjustment(level, decimal.NewFromInt(3), ref, "carol")
	require.NoError(t, err)
	assert.True(t, up.Quantity.Equal(decimal.NewFromInt(3)))

	down, err := NewAdjustment(level, decimal.NewFromInt(-2), ref, "carol")
	require.NoError(t, err)
	assert.True(t, down.Quantity.Equal(decimal.NewFromInt(-2)))
	assert.Equal(t, MovementTypeAdjust, down.MovementType)

	_, err = NewAdjustment(level, decimal.Zero, ref, "carol")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewTransferLegs(t *testing.T) {
	source := newLevel(t, 10, 5)
	dest := newLevel(t, 0, 0)
	ref := MovementRef{Type: "StockTransfer", Number: "TR-001"}

	out, err := NewTransfer(source, decimal.NewFromInt(-4), ref, "dave")
	require.NoError(t, err)
	in, err := NewTransfer(dest, decimal.NewFromInt(4), ref, "dave")
	require.NoError(t, err)

	assert.Equal(t, MovementTypeTransfer, out.MovementType)
	assert.True(t, out.Quantity.Equal(decimal.NewFromInt(-4)))
	assert.True(t, in.Quantity.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, out.ReferenceNumber, in.ReferenceNumber)

	_, err = NewTransfer(source, decimal.Zero, ref, "dave")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMovementTypeValid(t *testing.T) {
	assert.True(t, MovementTypeReceive.Valid())
	assert.True(t, MovementTypeTransfer.Valid())
	assert.False(t, MovementType("restock").Valid())
}
