package entity

// Account type constants as reported by the ledger source
const (
	AccountTypeRevenue          = "REVENUE"
	AccountTypeDirectCosts      = "DIRECTCOSTS"
	AccountTypeExpense          = "EXPENSE"
	AccountTypeCurrentAsset     = "CURRENT_ASSET"
	AccountTypeCurrentLiability = "CURRENT_LIABILITY"
)

// Account status constants
const (
	AccountStatusActive   = "ACTIVE"
	AccountStatusInactive = "INACTIVE"
)

// Mapping strategy tags, in priority order
const (
	StrategyExactCode       = "exact_code_match"
	StrategyExactName       = "exact_name_match"
	StrategySimilarName     = "similar_name_match"
	StrategyTypeClass       = "type_class_match"
	StrategyNoMatch         = "no_match"
	StrategyManualSelection = "manual_selection"
)

// Elimination match types
const (
	MatchTypeRevenueCOGS       = "revenue_cogs"
	MatchTypePayableReceivable = "payable_receivable"
)

// Decision status constants
const (
	DecisionStatusApproved = "approved"
	DecisionStatusRejected = "rejected"
)

// Approver constants
const (
	ApprovedByAuto   = "auto"
	ApprovedByManual = "manual"
)

// Reconciliation run kinds and statuses
const (
	RunKindMappings     = "mappings"
	RunKindEliminations = "eliminations"

	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// Confidence bounds shared by both scoring functions
const (
	MinConfidence = 0
	MaxConfidence = 100
)
