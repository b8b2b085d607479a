package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuotaUsage_Remaining(t *testing.T) {
	tests := []struct {
		name  string
		usage QuotaUsage
		want  int32
	}{
		{
			name:  "unused quota",
			usage: QuotaUsage{Used: 0, Limit: 10, Plan: PlanFree},
			want:  10,
		},
		{
			name:  "partially used",
			usage: QuotaUsage{Used: 3, Limit: 10, Plan: PlanFree},
			want:  7,
		},
		{
			name:  "exactly exhausted",
			usage: QuotaUsage{Used: 10, Limit: 10, Plan: PlanFree},
			want:  0,
		},
		{
			name:  "over limit clamps to zero",
			usage: QuotaUsage{Used: 503, Limit: 500, Plan: PlanPremium},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.usage.Remaining())
		})
	}
}

func TestLimitForPlan(t *testing.T) {
	assert.Equal(t, FreeSummaryLimit, LimitForPlan(PlanFree))
	assert.Equal(t, PremiumSummaryLimit, LimitForPlan(PlanPremium))
	assert.Equal(t, FreeSummaryLimit, LimitForPlan(Plan("unknown")))
}

func TestPlan_Valid(t *testing.T) {
	assert.True(t, PlanFree.Valid())
	assert.True(t, PlanPremium.Valid())
	assert.False(t, Plan("").Valid())
	assert.False(t, Plan("enterprise").Valid())
}

func TestSummaryLength_Valid(t *testing.T) {
	assert.True(t, SummaryLengthShort.Valid())
	assert.True(t, SummaryLengthStandard.Valid())
	assert.True(t, SummaryLengthDetailed.Valid())
	assert.False(t, SummaryLength("").Valid())
	assert.False(t, SummaryLength("verbose").Valid())
}
