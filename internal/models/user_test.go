package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestUserRollDay(t *testing.T) {
	day1 := time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)

	u := NewUser("u-1", day1)
	u.Credit(decimal.RequireFromString("0.3"), day1)
	assert.True(t, u.TodayEarnings.Equal(decimal.RequireFromString("0.3")))

	assert.False(t, u.RollDay(day1))
	assert.True(t, u.RollDay(day2))
	assert.True(t, u.TodayEarnings.IsZero())
	assert.True(t, u.TotalEarnings.Equal(decimal.RequireFromString("0.3")))
	assert.Equal(t, "2026-10-19", u.LastActiveDate)
}

func TestUserCreditAcrossDays(t *testing.T) {
	day1 := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	u := NewUser("u-1", day1)
	u.Credit(decimal.RequireFromString("0.5"), day1)
	u.Credit(decimal.RequireFromString("0.2"), day1.Add(24*time.Hour))

	assert.True(t, u.Balance.Equal(decimal.RequireFromString("0.7")))
	assert.True(t, u.TotalEarnings.Equal(decimal.RequireFromString("0.7")))
	assert.True(t, u.TodayEarnings.Equal(decimal.RequireFromString("0.2")))
}

func TestUserApplyRemoteClampsNegativeBalance(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	u := NewUser("u-1", now)
	u.ApplyRemote(decimal.NewFromInt(-3), decimal.NewFromInt(5), decimal.NewFromInt(1), now)

	assert.True(t, u.Balance.IsZero())
	assert.True(t, u.TotalEarnings.Equal(decimal.NewFromInt(5)))
}

func TestDefaultMilestonesAscending(t *testing.T) {
	ladder := DefaultMilestones()
	for i := 1; i < len(ladder); i++ {
		assert.Less(t, ladder[i-1].Target, ladder[i].Target)
	}
}
