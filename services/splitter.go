package services

import (
	"math"
	"math/rand"

	"rent-radar/models"
	"rent-radar/utils"
)

// Splitter partitions a cleaned set into train and test and picks the
// activation sample.
type Splitter struct {
	logger   *utils.Logger
	fraction float64
	seed     int64
}

// NewSplitter creates a Splitter that puts fraction of the rows in train.
func NewSplitter(logger *utils.Logger, fraction float64, seed int64) *Splitter {
	return &Splitter{logger: logger, fraction: fraction, seed: seed}
}

// Split samples round(fraction·n) rows into train, in sampled order. Test is
// every other row in input order and the activation sample is the first test
// row. The same seed and input always give the same split.
func (s *Splitter) Split(listings []*models.Listing) *models.Split {
	n := len(listings)
	nTrain := int(math.RoundToEven(s.fraction * float64(n)))
	if nTrain > n {
		nTrain = n
	}

	perm := rand.New(rand.NewSource(s.seed)).Perm(n)
	inTrain := make([]bool, n)

	split := &models.Split{
		Train: make([]*models.Listing, 0, nTrain),
		Test:  make([]*models.Listing, 0, n-nTrain),
	}
	for _, idx := range perm[:nTrain] {
		inTrain[idx] = true
		split.Train = append(split.Train, listings[idx])
	}
	for i, l := range listings {
		if !inTrain[i] {
			split.Test = append(split.Test, l)
		}
	}

	if len(split.Test) > 0 {
		split.Activation = split.Test[0]
	} else {
		s.logger.Warn("[splitter] Test set is empty, no activation sample produced")
	}

	s.logger.Info("[splitter] Training set %d rows, test set %d rows", len(split.Train), len(split.Test))
	return split
}
