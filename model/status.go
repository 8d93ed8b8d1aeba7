package model

// EngineStatus is a point-in-time summary of the staking engine.
type EngineStatus struct {
	PoolNum         int
	LiquidatedNum   int
	StakedItemNum   int
	ActiveRecordNum int
	ServerTime      int64
}
