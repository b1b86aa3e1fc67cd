package drp

import (
	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/andresuchdata/autodrp/backend-go/internal/stats"
)

const (
	// PeakMultiplier is how many times the median of the other buckets a
	// bucket must exceed to be flagged.
	PeakMultiplier = 2.0

	minPeakBuckets = 3
)

// DetectPeaks returns the indexes of buckets whose quantity is greater than
// PeakMultiplier times the median of the remaining buckets. A bucket is only
// judged against a positive median, and series shorter than three buckets
// never contain peaks.
func DetectPeaks(buckets []domain.Bucket) []int {
	if len(buckets) < minPeakBuckets {
		return nil
	}

	var peaks []int
	others := make([]float64, 0, len(buckets)-1)
	for i, b := range buckets {
		others = others[:0]
		for j, o := range buckets {
			if j != i {
				others = append(others, o.Quantity)
			}
		}
		median := stats.Median(others)
		if median > 0 && b.Quantity > PeakMultiplier*median {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// AdjustedRate is the mean daily rate of the buckets not flagged as peaks.
func AdjustedRate(buckets []domain.Bucket, peaks []int) float64 {
	if len(peaks) == 0 {
		rates := make([]float64, len(buckets))
		for i, b := range buckets {
			rates[i] = b.Rate
		}
		return stats.Mean(rates)
	}

	flagged := make(map[int]struct{}, len(peaks))
	for _, i := range peaks {
		flagged[i] = struct{}{}
	}

	rates := make([]float64, 0, len(buckets)-len(peaks))
	for i, b := range buckets {
		if _, ok := flagged[i]; !ok {
			rates = append(rates, b.Rate)
		}
	}
	if len(rates) == 0 {
		all := make([]float64, len(buckets))
		for i, b := range buckets {
			all[i] = b.Rate
		}
		return stats.Median(all)
	}
	return stats.Mean(rates)
}

func applyPeakDetection(p *domain.DemandProfile) {
	p.AdjustedDailyAverage = p.DailyAverage
	if p.DailyAverage == 0 {
		return
	}

	peaks := DetectPeaks(p.Buckets)
	if len(peaks) == 0 {
		return
	}

	for _, i := range peaks {
		p.Buckets[i].Peak = true
	}
	p.HasPeak = true
	p.AdjustedDailyAverage = AdjustedRate(p.Buckets, peaks)
}
