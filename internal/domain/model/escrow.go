package model

import "time"

type EscrowStatus string

const (
	EscrowStatusPending            EscrowStatus = "pending"
	EscrowStatusHeld               EscrowStatus = "held"
	EscrowStatusReleasedToSeller   EscrowStatus = "released_to_seller"
	EscrowStatusRefundedToCustomer EscrowStatus = "refunded_to_customer"
)

// released_to_seller / refunded_to_customer は終端。held からしか出金できない。
var escrowValidNext = map[EscrowStatus]map[EscrowStatus]bool{
	EscrowStatusPending:            {EscrowStatusHeld: true},
	EscrowStatusHeld:               {EscrowStatusReleasedToSeller: true, EscrowStatusRefundedToCustomer: true},
	EscrowStatusReleasedToSeller:   {},
	EscrowStatusRefundedToCustomer: {},
}

func CanTransitionEscrow(from, to EscrowStatus) bool {
	return escrowValidNext[from][to]
}

func (s EscrowStatus) IsTerminal() bool {
	return len(escrowValidNext[s]) == 0
}

// ReleasedBy に入る値。買手承認・自動釈放・管理者裁定の三経路を区別する。
const (
	EscrowReleasedByBuyer  = "buyer"
	EscrowReleasedByAdmin  = "admin"
	EscrowReleasedBySystem = "system"
)

type Escrow struct {
	Status             EscrowStatus `gorm:"column:status;type:varchar(30);not null;default:'pending';index" json:"status"`
	AutoReleaseAt      *time.Time   `gorm:"column:auto_release_at;index" json:"auto_release_at,omitempty"`
	ReleaseRequested   bool         `gorm:"column:release_requested;not null;default:false" json:"release_requested"`
	ReleaseRequestedAt *time.Time   `gorm:"column:release_requested_at" json:"release_requested_at,omitempty"`
	CustomerApproval   bool         `gorm:"column:customer_approval;not null;default:false" json:"customer_approval"`
	CustomerApprovalAt *time.Time   `gorm:"column:customer_approval_at" json:"customer_approval_at,omitempty"`
	ReleasedAt         *time.Time   `gorm:"column:released_at" json:"released_at,omitempty"`
	ReleasedBy         string       `gorm:"column:released_by;type:varchar(20)" json:"released_by,omitempty"`
}
