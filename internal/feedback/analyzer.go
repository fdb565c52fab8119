package feedback

import (
	"fmt"
	"sort"
	"time"

	"github.com/mikey/newsletter-filter/internal/core"
)

// Period filters feedback analysis by elapsed time
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// cutoff returns the earliest timestamp included in the period
func (p Period) cutoff(now time.Time) (time.Time, bool) {
	switch p {
	case PeriodDay:
		return now.AddDate(0, 0, -1), true
	case PeriodWeek:
		return now.AddDate(0, 0, -7), true
	case PeriodMonth:
		return now.AddDate(0, -1, 0), true
	default:
		return time.Time{}, false
	}
}

// DomainStat is one domain's confirm/reject tally
type DomainStat struct {
	Domain       string
	Items        int
	Confirms     int
	Rejects      int
	MinorityRate float64
}

// Stats is the aggregate accuracy report over a set of feedback items
type Stats struct {
	TotalItems int
	ByType     map[core.FeedbackType]int

	// Confusion matrix over confirm/reject items: the detection verdict
	// at submission time against the user's answer
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
	Accuracy       float64

	DomainCounts map[string]int

	// MisclassifiedDomains are the top domains, among those with at
	// least three items, ranked by the minority-class rate of their
	// confirm/reject split
	MisclassifiedDomains []DomainStat
}

// AnalyzeFeedback computes per-type counts, the confusion matrix,
// accuracy and per-domain tallies over the items within the period
func AnalyzeFeedback(items []*core.FeedbackItem, period Period, now time.Time) *Stats {
	stats := &Stats{
		ByType:       make(map[core.FeedbackType]int),
		DomainCounts: make(map[string]int),
	}

	cutoff, bounded := period.cutoff(now)
	domains := make(map[string]*DomainStat)

	for _, item := range items {
		if bounded && item.Timestamp.Before(cutoff) {
			continue
		}

		stats.TotalItems++
		stats.ByType[item.Type]++

		if item.SenderDomain != "" {
			stats.DomainCounts[item.SenderDomain]++
			ds, ok := domains[item.SenderDomain]
			if !ok {
				ds = &DomainStat{Domain: item.SenderDomain}
				domains[item.SenderDomain] = ds
			}
			ds.Items++
			switch item.Type {
			case core.FeedbackConfirm:
				ds.Confirms++
			case core.FeedbackReject:
				ds.Rejects++
			}
		}

		switch {
		case item.DetectionResult && item.Type == core.FeedbackConfirm:
			stats.TruePositives++
		case item.DetectionResult && item.Type == core.FeedbackReject:
			stats.FalsePositives++
		case !item.DetectionResult && item.Type == core.FeedbackReject:
			stats.TrueNegatives++
		case !item.DetectionResult && item.Type == core.FeedbackConfirm:
			stats.FalseNegatives++
		}
	}

	classified := stats.TruePositives + stats.FalsePositives + stats.TrueNegatives + stats.FalseNegatives
	if classified > 0 {
		stats.Accuracy = float64(stats.TruePositives+stats.TrueNegatives) / float64(classified)
	}

	stats.MisclassifiedDomains = topMisclassifiedDomains(domains, 5)
	return stats
}

// topMisclassifiedDomains ranks domains with at least three items by the
// minority-class rate of their confirm/reject split
func topMisclassifiedDomains(domains map[string]*DomainStat, limit int) []DomainStat {
	candidates := make([]DomainStat, 0, len(domains))
	for _, ds := range domains {
		if ds.Items < 3 {
			continue
		}
		classified := ds.Confirms + ds.Rejects
		if classified == 0 {
			continue
		}
		minority := ds.Confirms
		if ds.Rejects < minority {
			minority = ds.Rejects
		}
		ds.MinorityRate = float64(minority) / float64(classified)
		if ds.MinorityRate > 0 {
			candidates = append(candidates, *ds)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].MinorityRate != candidates[j].MinorityRate {
			return candidates[i].MinorityRate > candidates[j].MinorityRate
		}
		return candidates[i].Domain < candidates[j].Domain
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// KeyCount is a ranked key with its item count
type KeyCount struct {
	Key   string
	Count int
}

// Patterns are recurring senders and domains in the feedback history
type Patterns struct {
	// FrequentSenders are senders with at least three items, top ten
	FrequentSenders []KeyCount
	// FrequentDomains are domains with at least three items, top ten
	FrequentDomains []KeyCount
	// InconsistentSenders received both confirm and reject feedback
	InconsistentSenders []string
}

// IdentifyPatterns finds frequent and inconsistent senders and domains
func IdentifyPatterns(items []*core.FeedbackItem) *Patterns {
	senders := make(map[string]int)
	domains := make(map[string]int)
	confirms := make(map[string]bool)
	rejects := make(map[string]bool)

	for _, item := range items {
		if item.Sender != "" {
			senders[item.Sender]++
		}
		if item.SenderDomain != "" {
			domains[item.SenderDomain]++
		}
		switch item.Type {
		case core.FeedbackConfirm:
			confirms[item.Sender] = true
		case core.FeedbackReject:
			rejects[item.Sender] = true
		}
	}

	inconsistent := make([]string, 0)
	for sender := range confirms {
		if rejects[sender] {
			inconsistent = append(inconsistent, sender)
		}
	}
	sort.Strings(inconsistent)

	return &Patterns{
		FrequentSenders:     topCounts(senders, 3, 10),
		FrequentDomains:     topCounts(domains, 3, 10),
		InconsistentSenders: inconsistent,
	}
}

// topCounts ranks keys with at least min occurrences, highest first
func topCounts(counts map[string]int, min, limit int) []KeyCount {
	out := make([]KeyCount, 0, len(counts))
	for key, count := range counts {
		if count >= min {
			out = append(out, KeyCount{Key: key, Count: count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// AccuracyMetrics are precision/recall/F1 over confirm/reject items
type AccuracyMetrics struct {
	Precision  float64
	Recall     float64
	F1         float64
	Classified int
}

// CalculateAccuracyMetrics computes precision, recall and F1 over the
// confirm/reject items only, guarding every division by zero
func CalculateAccuracyMetrics(items []*core.FeedbackItem) *AccuracyMetrics {
	var tp, fp, fn int
	classified := 0

	for _, item := range items {
		if item.Type != core.FeedbackConfirm && item.Type != core.FeedbackReject {
			continue
		}
		classified++
		switch {
		case item.DetectionResult && item.Type == core.FeedbackConfirm:
			tp++
		case item.DetectionResult && item.Type == core.FeedbackReject:
			fp++
		case !item.DetectionResult && item.Type == core.FeedbackConfirm:
			fn++
		}
	}

	metrics := &AccuracyMetrics{Classified: classified}
	if tp+fp > 0 {
		metrics.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		metrics.Recall = float64(tp) / float64(tp+fn)
	}
	if metrics.Precision+metrics.Recall > 0 {
		metrics.F1 = 2 * metrics.Precision * metrics.Recall / (metrics.Precision + metrics.Recall)
	}
	return metrics
}

// GenerateSuggestions derives deterministic rule-based guidance from the
// computed statistics
func GenerateSuggestions(stats *Stats, patterns *Patterns, metrics *AccuracyMetrics) []string {
	suggestions := make([]string, 0)
	classified := stats.TruePositives + stats.FalsePositives + stats.TrueNegatives + stats.FalseNegatives

	if classified < 10 {
		suggestions = append(suggestions,
			"Not enough classified feedback yet for reliable accuracy numbers; keep confirming or rejecting detections.")
		return suggestions
	}

	if stats.Accuracy < 0.7 {
		suggestions = append(suggestions, fmt.Sprintf(
			"Detection accuracy is %.0f%%; review the sender patterns below and consider adjusting the verification band.",
			stats.Accuracy*100))
	}

	if stats.FalsePositives > 2*stats.FalseNegatives && stats.FalsePositives > 2 {
		suggestions = append(suggestions,
			"The detector marks too many personal emails as newsletters; false positives dominate the error cases.")
	}
	if stats.FalseNegatives > 2*stats.FalsePositives && stats.FalseNegatives > 2 {
		suggestions = append(suggestions,
			"The detector misses newsletters; false negatives dominate the error cases.")
	}

	if len(patterns.InconsistentSenders) > 0 {
		suggestions = append(suggestions, fmt.Sprintf(
			"%d senders received both confirm and reject feedback; their reputation will stay near neutral until the feedback settles.",
			len(patterns.InconsistentSenders)))
	}

	for _, ds := range stats.MisclassifiedDomains {
		if ds.MinorityRate >= 0.3 {
			suggestions = append(suggestions, fmt.Sprintf(
				"Mail from %s splits %d/%d between confirm and reject; a per-domain rule may help.",
				ds.Domain, ds.Confirms, ds.Rejects))
			break
		}
	}

	if metrics.Recall > 0 && metrics.Precision > 0 && metrics.F1 < 0.6 {
		suggestions = append(suggestions, fmt.Sprintf(
			"F1 score is %.2f; the header and content heuristics may need new patterns for your mail mix.", metrics.F1))
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, "Detection accuracy looks healthy; no changes suggested.")
	}
	return suggestions
}
