package archive

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Guard vetoes bulk archival when too large a fraction of the stored
// listings goes missing in one pass. A parser or fetch regression that
// returns empty pages is indistinguishable from a real mass delisting, and
// acting on it would destroy price history irrecoverably.
type Guard struct {
	threshold float64
	logger    *logrus.Logger
}

func NewGuard(threshold float64, logger *logrus.Logger) *Guard {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Guard{threshold: threshold, logger: logger}
}

// Approve returns true when archiving the missing set is safe. A veto is
// logged loudly as a possible format regression.
func (g *Guard) Approve(missing, existing int) bool {
	if missing == 0 {
		return false
	}
	if existing == 0 {
		return false
	}

	fraction := float64(missing) / float64(existing)
	if fraction > g.threshold {
		g.logger.WithFields(logrus.Fields{
			"missing":   missing,
			"existing":  existing,
			"fraction":  fraction,
			"threshold": g.threshold,
		}).Error("SAFETY CHECK TRIGGERED: mass removal detected, possible format regression or scraping failure - skipping archival, manual investigation required")
		return false
	}

	g.logger.WithFields(logrus.Fields{
		"missing":  missing,
		"existing": existing,
		"fraction": fraction,
	}).Info("Archival approved for missing listings")
	return true
}
