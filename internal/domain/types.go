package domain

import "time"

type ProductStatus string

const (
	StatusAvailable ProductStatus = "available"
	StatusLent      ProductStatus = "lent"
)

type ActionType string

const (
	ActionAdd      ActionType = "add"
	ActionSubtract ActionType = "subtract"
	ActionLend     ActionType = "lend"
	ActionReturn   ActionType = "return"
	ActionDelete   ActionType = "delete"
)

// Label is the human-readable past-tense form shown in the history log.
func (a ActionType) Label() string {
	switch a {
	case ActionAdd:
		return "Added"
	case ActionSubtract:
		return "Subtracted"
	case ActionLend:
		return "Lent"
	case ActionReturn:
		return "Returned"
	case ActionDelete:
		return "Deleted"
	default:
		return string(a)
	}
}

type Sector struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Product struct {
	ID             string        `json:"id"`
	SectorID       string        `json:"sectorId"`
	Name           string        `json:"name"`
	Quantity       int           `json:"quantity"`
	ExpirationDate *time.Time    `json:"expirationDate,omitempty"`
	Status         ProductStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// HistoryEntry is an immutable audit record. ProductName and SectorName are
// snapshots taken when the entry was written.
type HistoryEntry struct {
	ID          string     `json:"id"`
	Type        ActionType `json:"type"`
	ProductName string     `json:"productName"`
	SectorName  string     `json:"sectorName"`
	Quantity    int        `json:"quantity"`
	Timestamp   time.Time  `json:"timestamp"`
	Responsible string     `json:"responsible"`
}

// Document is the aggregate persisted as a single unit.
type Document struct {
	Sectors  []Sector       `json:"sectors"`
	Products []Product      `json:"products"`
	History  []HistoryEntry `json:"history"`
}

func NewDocument() *Document {
	return &Document{
		Sectors:  []Sector{},
		Products: []Product{},
		History:  []HistoryEntry{},
	}
}
