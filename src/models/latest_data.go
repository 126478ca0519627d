package models

// -----------------------------------------------------------------------------
// Server State Structure
// -----------------------------------------------------------------------------

type MLatestData struct {
	Type              string                     `json:"type"` // "INITIAL" or "UPDATE"
	Tables            map[string]*MEnrichedTable `json:"tables"`
	Timestamp         int64                      `json:"timestamp"`
	NextUpdate        int64                      `json:"next_update"`
	ProcessingMetrics MProcessingMetrics         `json:"processing_metrics"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command string   `json:"command"`
	Sources []string `json:"sources"`
	Symbols []string `json:"symbols"`
}
