// internal/models/milestone.go
package models

import "github.com/shopspring/decimal"

// Milestone targets are expressed in GB of generated bandwidth.
type Milestone struct {
	ID         int             `json:"id"`
	Target     float64         `json:"target"`
	Label      string          `json:"label"`
	RewardDoge decimal.Decimal `json:"reward"`
	Reached    bool            `json:"reached"`
}

// Progress is the persisted state of the milestone tracker.
type Progress struct {
	TotalBandwidthGB float64     `json:"totalBandwidth"`
	TotalUpdates     int64       `json:"totalUpdates"`
	Milestones       []Milestone `json:"milestones"`
	FinalReached     bool        `json:"finalReached"`
}

func DefaultMilestones() []Milestone {
	return []Milestone{
		{ID: 1, Target: 1000, Label: "1 TB", RewardDoge: decimal.NewFromInt(10)},
		{ID: 2, Target: 10000, Label: "10 TB", RewardDoge: decimal.NewFromInt(50)},
		{ID: 3, Target: 100000, Label: "100 TB", RewardDoge: decimal.NewFromInt(200)},
		{ID: 4, Target: 1000000, Label: "1 PB", RewardDoge: decimal.NewFromInt(1000)},
		{ID: 5, Target: 10000000, Label: "10 PB", RewardDoge: decimal.NewFromInt(5000)},
		{ID: 6, Target: 100000000, Label: "100 PB", RewardDoge: decimal.NewFromInt(25000)},
		{ID: 7, Target: 500000000, Label: "500 PB", RewardDoge: decimal.NewFromInt(100000)},
	}
}
