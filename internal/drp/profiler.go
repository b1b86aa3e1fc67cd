package drp

import (
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/andresuchdata/autodrp/backend-go/internal/stats"
)

const (
	// Windows up to this length are bucketed per day; longer ones per 30 days.
	dailyBucketMaxWindow = 60
	monthBucketDays      = 30

	highConfidenceCV   = 0.30
	mediumConfidenceCV = 0.50
)

// ClassifyConfidence maps a coefficient of variation to a confidence grade.
// CV < 0.30 is high, 0.30 <= CV <= 0.50 is medium, CV > 0.50 is low.
func ClassifyConfidence(cv float64) domain.Confidence {
	switch {
	case cv < highConfidenceCV:
		return domain.ConfidenceHigh
	case cv <= mediumConfidenceCV:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// BucketDays returns the bucket length used for a window.
func BucketDays(windowDays int) int {
	if windowDays <= dailyBucketMaxWindow {
		return 1
	}
	return monthBucketDays
}

// Profile summarizes the sales of one product at one branch over the windowDays
// ending at asOf (inclusive). Observations outside the window are ignored.
func Profile(productID, branchID string, observations []domain.SalesObservation, windowDays int, asOf time.Time) (*domain.DemandProfile, error) {
	buckets, err := bucketize(observations, windowDays, asOf)
	if err != nil {
		return nil, fmt.Errorf("profile %s@%s: %w", productID, branchID, err)
	}
	return profileFromBuckets(productID, branchID, windowDays, buckets), nil
}

func bucketize(observations []domain.SalesObservation, windowDays int, asOf time.Time) ([]domain.Bucket, error) {
	if !domain.IsSupportedWindow(windowDays) {
		return nil, fmt.Errorf("%w: %d days", ErrUnsupportedWindow, windowDays)
	}

	end := dayOf(asOf)
	start := end.AddDate(0, 0, -(windowDays - 1))
	size := BucketDays(windowDays)

	buckets := make([]domain.Bucket, windowDays/size)
	for i := range buckets {
		buckets[i] = domain.Bucket{
			Start: start.AddDate(0, 0, i*size),
			Days:  size,
		}
	}

	for _, obs := range observations {
		if obs.Quantity < 0 || math.IsNaN(obs.Quantity) || math.IsInf(obs.Quantity, 0) {
			return nil, fmt.Errorf("%w: sales quantity %v on %s", ErrInvalidInput, obs.Quantity, obs.Date.Format("2006-01-02"))
		}
		day := dayOf(obs.Date)
		if day.Before(start) || day.After(end) {
			continue
		}
		offset := int(day.Sub(start).Hours() / 24)
		buckets[offset/size].Quantity += obs.Quantity
	}

	for i := range buckets {
		buckets[i].Rate = buckets[i].Quantity / float64(buckets[i].Days)
	}

	return buckets, nil
}

// profileFromBuckets derives every statistic from an already bucketed series.
// Substitute groups reuse it on summed member buckets.
func profileFromBuckets(productID, branchID string, windowDays int, buckets []domain.Bucket) *domain.DemandProfile {
	quantities := make([]float64, len(buckets))
	rates := make([]float64, len(buckets))
	for i, b := range buckets {
		quantities[i] = b.Quantity
		rates[i] = b.Rate
	}

	p := &domain.DemandProfile{
		ProductID:  productID,
		BranchID:   branchID,
		WindowDays: windowDays,
		TotalSales: stats.Sum(quantities),
		StdDev:     stats.PopulationStdDev(rates),
		Confidence: domain.ConfidenceLow,
		Buckets:    buckets,
	}
	p.DailyAverage = p.TotalSales / float64(windowDays)

	if p.DailyAverage > 0 {
		cv := p.StdDev / p.DailyAverage
		p.CV = &cv
		p.Confidence = ClassifyConfidence(cv)
	}

	applyPeakDetection(p)
	return p
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
