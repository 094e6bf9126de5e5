package model

// CommandKind enumerates the instance's command surface.
type CommandKind string

const (
	CmdStart                CommandKind = "START"
	CmdStop                 CommandKind = "STOP"
	CmdAct                  CommandKind = "ACT"
	CmdReserveBudget        CommandKind = "RESERVE_BUDGET"
	CmdReserveBudgetDefault CommandKind = "RESERVE_BUDGET_DEFAULT"
	CmdSetWeights           CommandKind = "SET_WEIGHTS"
	CmdDeposit              CommandKind = "DEPOSIT"
	CmdWithdraw             CommandKind = "WITHDRAW"
	CmdTerminate            CommandKind = "TERMINATE"
	CmdQueryState           CommandKind = "QUERY_STATE"
	CmdQueryHoldings        CommandKind = "QUERY_HOLDINGS"
)

// WeightChange assigns a weight to one asset.
type WeightChange struct {
	Symbol string `json:"symbol"`
	Weight uint32 `json:"weight"`
}

// Command is one message addressed to an instance.
type Command struct {
	Kind   CommandKind    `json:"kind"`
	From   Account        `json:"from"`
	Symbol string         `json:"symbol,omitempty"`
	Amount Amount         `json:"amount"`
	Budget uint64         `json:"budget,omitempty"`
	Ticks  uint64         `json:"ticks,omitempty"`
	Weight []WeightChange `json:"weights,omitempty"`
}

// ReplyKind tags the payload carried by a Reply.
type ReplyKind string

const (
	ReplyAck        ReplyKind = "SUCCESS"
	ReplyGranted    ReplyKind = "GAS_RESERVE"
	ReplyState      ReplyKind = "STATE"
	ReplyHoldings   ReplyKind = "HOLDINGS"
	ReplyTerminated ReplyKind = "TERMINATED"
)

// Grant is what a reservation request actually obtained.
type Grant struct {
	Amount uint64 `json:"amount"`
	Ticks  uint64 `json:"time"`
}

// Reply is the response to a Command.
type Reply struct {
	Kind     ReplyKind       `json:"kind"`
	Granted  *Grant          `json:"granted,omitempty"`
	State    *SchedulerState `json:"state,omitempty"`
	Holdings []Holding       `json:"holdings,omitempty"`
}
