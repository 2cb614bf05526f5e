package notify

import (
	"encoding/json"
	"time"
)

// ProvisionCompleteMessage tells consumers that every transfer
// installment of a provision plan is settled and the final payment
// identified here is now actionable.
type ProvisionCompleteMessage struct {
	ProjectID    string    `json:"projectId"`
	BudgetID     string    `json:"budgetId"`
	ObligationID string    `json:"obligationId"`
	Counterpart  string    `json:"counterpart"`
	Description  string    `json:"description"`
	AmountCents  int64     `json:"amountCents"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewProvisionCompleteMessage(projectID, budgetID, obligationID, counterpart, description string, amountCents int64) *ProvisionCompleteMessage {
	return &ProvisionCompleteMessage{
		ProjectID:    projectID,
		BudgetID:     budgetID,
		ObligationID: obligationID,
		Counterpart:  counterpart,
		Description:  description,
		AmountCents:  amountCents,
		Timestamp:    time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ProvisionCompleteMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ProvisionCompleteMessageFromJSON creates a message from JSON bytes
func ProvisionCompleteMessageFromJSON(data []byte) (*ProvisionCompleteMessage, error) {
	var msg ProvisionCompleteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
