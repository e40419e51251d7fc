package notification

import (
	"math/rand/v2"
	"sync"
)

// DefaultFunctionalProbability is the chance of a task-referencing nudge when
// the subscriber has outstanding tasks.
const DefaultFunctionalProbability = 0.7

// Selector draws the nudge kind and style. Draws are independent per call and
// intentionally unseeded in production.
type Selector struct {
	mu          sync.Mutex
	rng         *rand.Rand
	functionalP float64
}

// NewSelector builds a selector over src. A nil src gets a PCG source seeded
// from the runtime generator.
func NewSelector(src rand.Source, functionalP float64) *Selector {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	if functionalP < 0 || functionalP > 1 {
		functionalP = DefaultFunctionalProbability
	}
	return &Selector{
		rng:         rand.New(src),
		functionalP: functionalP,
	}
}

// Kind returns KindFlavor when there is nothing to reference, otherwise a
// Bernoulli draw weighted towards KindFunctional.
func (s *Selector) Kind(taskCount int) Kind {
	if taskCount <= 0 {
		return KindFlavor
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng.Float64() < s.functionalP {
		return KindFunctional
	}
	return KindFlavor
}

// Style draws uniformly from Styles.
func (s *Selector) Style() Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Styles[s.rng.IntN(len(Styles))]
}
