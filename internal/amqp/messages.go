package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reasons carried by BudgetEventMessage.
const (
	ReasonItemChanged     = "item_changed"
	ReasonCashOutApplied  = "cashout_applied"
	ReasonCashOutReset    = "cashout_reset"
	ReasonMonthCreated    = "month_created"
	ReasonRecurringSpread = "recurring_propagated"
)

// BudgetEventMessage announces that a budget month changed. It carries only
// identifiers; consumers reload the month from storage.
type BudgetEventMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	BudgetID  string    `json:"budgetId"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBudgetEventMessage(userID, budgetID string, year, month int, reason string) *BudgetEventMessage {
	return &BudgetEventMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		BudgetID:  budgetID,
		Year:      year,
		Month:     month,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

func (m *BudgetEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetEventMessageFromJSON(data []byte) (*BudgetEventMessage, error) {
	var msg BudgetEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, fmt.Errorf("budget event %s has no user", msg.ID)
	}
	if msg.Month < 1 || msg.Month > 12 {
		return nil, fmt.Errorf("budget event %s has invalid month %d", msg.ID, msg.Month)
	}
	return &msg, nil
}
