package kafka

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypePurchaseOrderReceived = "purchase_order.received"
	EventTypeSaleCompleted         = "sale.completed"
	EventTypeStockLevelChanged     = "stock.level_changed"
)

// Kafka topics
const (
	TopicPurchaseOrders = "purchase-orders"
	TopicSales          = "sales"
	TopicStockLevels    = "stock-levels"
)

// PurchaseOrderReceivedEvent signals that goods on a purchase order arrived
type PurchaseOrderReceivedEvent struct {
	EventID             string              `json:"event_id"`
	EventType           string              `json:"event_type"`
	PurchaseOrderID     uuid.UUID           `json:"purchase_order_id"`
	PurchaseOrderNumber string              `json:"purchase_order_number"`
	ReceivedBy          string              `json:"received_by"`
	Items               []PurchaseOrderItem `json:"items"`
	Timestamp           time.Time           `json:"timestamp"`
}

// PurchaseOrderItem is one received line
type PurchaseOrderItem struct {
	ItemID           uuid.UUID       `json:"item_id"`
	WarehouseID      *uuid.UUID      `json:"warehouse_id,omitempty"`
	BinID            *uuid.UUID      `json:"bin_id,omitempty"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	BatchNo          string          `json:"batch_no,omitempty"`
	ExpiryDate       *time.Time      `json:"expiry_date,omitempty"`
}

// SaleCompletedEvent signals that a sale was finalized and stock must be
// issued
type SaleCompletedEvent struct {
	EventID     string     `json:"event_id"`
	EventType   string     `json:"event_type"`
	SaleID      uuid.UUID  `json:"sale_id"`
	SaleNumber  string     `json:"sale_number"`
	CompletedBy string     `json:"completed_by"`
	Items       []SaleItem `json:"items"`
	Timestamp   time.Time  `json:"timestamp"`
}

// SaleItem is one sold line
type SaleItem struct {
	ItemID      uuid.UUID       `json:"item_id"`
	WarehouseID *uuid.UUID      `json:"warehouse_id,omitempty"`
	BinID       *uuid.UUID      `json:"bin_id,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// StockLevelChangedEvent is published after a ledger transaction commits
type StockLevelChangedEvent struct {
	EventID         string          `json:"event_id"`
	EventType       string          `json:"event_type"`
	ItemID          uuid.UUID       `json:"item_id"`
	WarehouseID     uuid.UUID       `json:"warehouse_id"`
	BinID           *uuid.UUID      `json:"bin_id,omitempty"`
	MovementType    string          `json:"movement_type"`
	Quantity        decimal.Decimal `json:"quantity"`
	NewQuantity     decimal.Decimal `json:"new_quantity"`
	ReferenceNumber string          `json:"reference_number"`
	Timestamp       time.Time       `json:"timestamp"`
}
