package scoring

// Summary aggregates a scored dataset. Each mean is reported with the size
// of the population it was computed over, since those populations differ.
//
// Samples, Predicted, ParseFailures and PrefixMatches count every sample.
// The means and trap figures cover exact-key ground truth only; samples
// matched on the filename prefix are summarised separately in Prefix.
type Summary struct {
	Samples       int `json:"samples"`
	Predicted     int `json:"predicted"`
	ParseFailures int `json:"parse_failures"`
	PrefixMatches int `json:"prefix_matches"`

	Population

	TrapFallRate *float64 `json:"tfr"`
	TrapChecked  int      `json:"tfr_count"`
	TrapHits     int      `json:"tfr_hits"`

	Prefix *Population `json:"prefix,omitempty"`
}

// Population holds the means of one ground-truth population.
type Population struct {
	Count int `json:"count"`

	// MeanAccuracy is averaged over samples with a defined error.
	MeanAccuracy  *float64 `json:"mean_wla"`
	AccuracyCount int      `json:"wla_count"`
	// AccuracyAll counts samples without a prediction as 0.
	AccuracyAll *float64 `json:"mean_wla_all"`

	MeanErrorKm *float64 `json:"mean_error_km"`

	MeanBias  *float64 `json:"mean_tbs"`
	BiasCount int      `json:"tbs_count"`
}

type populationSums struct {
	count, accCount, biasCount int
	acc, accAll, errKm, bias   float64
}

func (p *populationSums) add(s Sample) {
	p.count++
	p.accAll += s.Accuracy
	if s.ErrorKm != nil {
		p.accCount++
		p.acc += s.Accuracy
		p.errKm += *s.ErrorKm
	}
	if s.Bias != nil {
		p.biasCount++
		p.bias += *s.Bias
	}
}

func (p populationSums) population() Population {
	return Population{
		Count:         p.count,
		MeanAccuracy:  mean(p.acc, p.accCount),
		AccuracyCount: p.accCount,
		AccuracyAll:   mean(p.accAll, p.count),
		MeanErrorKm:   mean(p.errKm, p.accCount),
		MeanBias:      mean(p.bias, p.biasCount),
		BiasCount:     p.biasCount,
	}
}

// Summarize computes dataset-level statistics over scored samples.
func Summarize(samples []Sample) Summary {
	var s Summary
	var exact, prefix populationSums
	for _, sample := range samples {
		s.Samples++
		if sample.Predicted == nil {
			s.ParseFailures++
		} else {
			s.Predicted++
		}
		if sample.Match == MatchPrefix {
			s.PrefixMatches++
			prefix.add(sample)
			continue
		}
		exact.add(sample)
		if sample.TrapHit != nil {
			s.TrapChecked++
			if *sample.TrapHit {
				s.TrapHits++
			}
		}
	}
	s.Population = exact.population()
	s.TrapFallRate = mean(float64(s.TrapHits), s.TrapChecked)
	if prefix.count > 0 {
		p := prefix.population()
		s.Prefix = &p
	}
	return s
}

func mean(sum float64, n int) *float64 {
	if n == 0 {
		return nil
	}
	v := sum / float64(n)
	return &v
}
