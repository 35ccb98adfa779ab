package dividend

import (
	"sort"

	"github.com/bookledger-io/equity-ledger/internal/db/model"
)

// Summary is payment statistics for a dry run, all in minor units.
type Summary struct {
	HolderCount    int
	PaymentCount   int
	ExcludedCount  int
	MinPayment     int64
	MaxPayment     int64
	MedianPayment  int64
	AveragePayment int64
}

type Simulation struct {
	Distribution *model.DividendDistribution
	Summary      Summary
}

// Simulate runs a distribution without committing anything and reports
// payment statistics, for previewing a run before execution.
func Simulate(in DistributionInput) (*Simulation, error) {
	dist, err := CalculateDistribution(in)
	if err != nil {
		return nil, err
	}

	summary := Summary{
		HolderCount:   len(in.Holders),
		PaymentCount:  len(dist.Payments),
		ExcludedCount: len(in.Holders) - len(dist.Payments),
	}

	if len(dist.Payments) > 0 {
		amounts := make([]int64, len(dist.Payments))
		for i, p := range dist.Payments {
			amounts[i] = p.Amount
		}
		sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })

		summary.MinPayment = amounts[0]
		summary.MaxPayment = amounts[len(amounts)-1]
		summary.AveragePayment = dist.TotalDistributed / int64(len(amounts))

		mid := len(amounts) / 2
		if len(amounts)%2 == 0 {
			summary.MedianPayment = (amounts[mid-1] + amounts[mid]) / 2
		} else {
			summary.MedianPayment = amounts[mid]
		}
	}

	return &Simulation{Distribution: dist, Summary: summary}, nil
}
