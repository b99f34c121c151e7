package finance

import (
	"time"

	"github.com/sigillo-app/backend/internal/submissions"
)

// weeklyBucketThresholdDays is the range length above which the chart series
// re-buckets daily totals into 7-day windows.
const weeklyBucketThresholdDays = 60

// paidReceiptStatus is the receipt status counted as revenue.
const paidReceiptStatus = "paid"

// Period is a date window, inclusive on both ends at day granularity.
type Period struct {
	Start     time.Time
	End       time.Time
	MonthMode bool
}

// MonthPeriod builds the period covering one calendar month.
func MonthPeriod(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return Period{Start: start, End: end, MonthMode: true}
}

// RangePeriod builds an arbitrary custom-range period.
func RangePeriod(start, end time.Time) Period {
	return Period{Start: truncateDay(start), End: truncateDay(end)}
}

// Rows carries the independently fetched row sets the KPI engine aggregates.
type Rows struct {
	Receipts        []submissions.ReceiptRecord
	WebserviceCosts []WebserviceCost
	AdCosts         []AdCost
	Payouts         []Payout
	OtherCosts      []OtherCost
}

// CostBreakdown splits total costs across the four expense categories.
type CostBreakdown struct {
	Webservice float64 `json:"webservice"`
	Ads        float64 `json:"ads"`
	Payouts    float64 `json:"payouts"`
	Other      float64 `json:"other"`
}

// Total sums the four categories.
func (b CostBreakdown) Total() float64 {
	return b.Webservice + b.Ads + b.Payouts + b.Other
}

func (b *CostBreakdown) add(other CostBreakdown) {
	b.Webservice += other.Webservice
	b.Ads += other.Ads
	b.Payouts += other.Payouts
	b.Other += other.Other
}

// Bucket is one bar of the revenue/cost chart: a single day, or a 7-day
// window when the range exceeds the weekly threshold.
type Bucket struct {
	Start   time.Time     `json:"start"`
	Days    int           `json:"days"`
	Revenue float64       `json:"revenue"`
	Costs   CostBreakdown `json:"costs"`
}

// KPIs is the full set of financial indicators for one period.
type KPIs struct {
	TotalRevenue float64       `json:"total_revenue"`
	TotalCosts   float64       `json:"total_costs"`
	Margin       float64       `json:"margin"`
	MarginPct    float64       `json:"margin_pct"`
	MRR          float64       `json:"mrr"`
	Breakdown    CostBreakdown `json:"breakdown"`
	Buckets      []Bucket      `json:"buckets"`
}

// ComputeKPIs recomputes every indicator for the period from the supplied
// rows. It is a pure function: no storage or clock dependency, so the same
// rows and period always produce the same KPIs.
func ComputeKPIs(period Period, rows Rows) KPIs {
	start := truncateDay(period.Start)
	end := truncateDay(period.End)
	if end.Before(start) {
		start, end = end, start
	}
	rangeDays := daysBetween(start, end) + 1

	bucketDays := 1
	if rangeDays > weeklyBucketThresholdDays {
		bucketDays = 7
	}

	revenueByDay := paidRevenueByDay(rows.Receipts)

	var buckets []Bucket
	var total KPIs
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		index := daysBetween(start, day) / bucketDays
		for index >= len(buckets) {
			buckets = append(buckets, Bucket{
				Start: start.AddDate(0, 0, len(buckets)*bucketDays),
				Days:  bucketDays,
			})
		}

		revenue := revenueByDay[day]
		costs := costsForDay(day, rows)

		buckets[index].Revenue += revenue
		buckets[index].Costs.add(costs)
		total.TotalRevenue += revenue
		total.Breakdown.add(costs)
	}

	total.TotalCosts = total.Breakdown.Total()
	total.Margin = total.TotalRevenue - total.TotalCosts
	if total.TotalRevenue != 0 {
		total.MarginPct = total.Margin / total.TotalRevenue * 100
	}
	total.MRR = computeMRR(period, start, rangeDays, total.TotalRevenue, revenueByDay)
	total.Buckets = buckets
	return total
}

// computeMRR derives monthly recurring revenue: in month mode the arithmetic
// mean of the trailing three calendar months' revenue (the selected month and
// the two before it); in custom-range mode revenue normalized to a 30-day
// month.
func computeMRR(period Period, start time.Time, rangeDays int, totalRevenue float64, revenueByDay map[time.Time]float64) float64 {
	if !period.MonthMode {
		if rangeDays == 0 {
			return 0
		}
		return totalRevenue / float64(rangeDays) * 30
	}

	sum := 0.0
	for offset := 0; offset < 3; offset++ {
		monthStart := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -offset, 0)
		monthEnd := monthStart.AddDate(0, 1, -1)
		for day := monthStart; !day.After(monthEnd); day = day.AddDate(0, 0, 1) {
			sum += revenueByDay[day]
		}
	}
	return sum / 3
}

func costsForDay(day time.Time, rows Rows) CostBreakdown {
	var costs CostBreakdown
	for _, cost := range rows.WebserviceCosts {
		if cost.Recurring {
			if cost.Active && recurringChargedOn(cost, day) {
				costs.Webservice += cost.Amount
			}
			continue
		}
		if sameDay(cost.Date, day) {
			costs.Webservice += cost.Amount
		}
	}
	for _, cost := range rows.AdCosts {
		if sameDay(cost.Date, day) {
			costs.Ads += cost.Amount
		}
	}
	for _, payout := range rows.Payouts {
		if payout.NormalizedStatus() != PayoutCanceled && sameDay(payout.Date, day) {
			costs.Payouts += payout.Amount
		}
	}
	for _, cost := range rows.OtherCosts {
		if sameDay(cost.Date, day) {
			costs.Other += cost.Amount
		}
	}
	return costs
}

// recurringChargedOn matches a monthly recurring cost to a calendar day by
// billing day, clamping a billing day beyond the month's last day to the last
// day (day 31 charges on Feb 28/29 and on the 30th of 30-day months).
func recurringChargedOn(cost WebserviceCost, day time.Time) bool {
	billingDay := cost.BillingDay
	if billingDay <= 0 {
		billingDay = cost.Date.Day()
	}
	last := lastDayOfMonth(day)
	if billingDay > last {
		billingDay = last
	}
	return day.Day() == billingDay
}

func paidRevenueByDay(receipts []submissions.ReceiptRecord) map[time.Time]float64 {
	byDay := make(map[time.Time]float64, len(receipts))
	for _, receipt := range receipts {
		if receipt.Status != paidReceiptStatus {
			continue
		}
		byDay[truncateDay(receipt.Date)] += float64(receipt.AmountPaid) / 100
	}
	return byDay
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(t, day time.Time) bool {
	return truncateDay(t).Equal(day)
}

func daysBetween(start, day time.Time) int {
	return int(day.Sub(start) / (24 * time.Hour))
}

func lastDayOfMonth(day time.Time) int {
	firstOfNext := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1).Day()
}
