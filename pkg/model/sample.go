package model

import "github.com/zpam/spamscan/pkg/bayes"

// SampleCorpus returns the small bundled corpus used for smoke tests and
// `spamscan train --sample`.
func SampleCorpus() Corpus {
	return Corpus{
		{Text: "Win a free car now!", Label: bayes.Spam},
		{Text: "URGENT: Your account needs verification", Label: bayes.Spam},
		{Text: "Hello, let's catch up tomorrow", Label: bayes.Ham},
		{Text: "Meeting minutes attached", Label: bayes.Ham},
		{Text: "Click here for a limited time offer", Label: bayes.Spam},
		{Text: "Your project update is due", Label: bayes.Ham},
	}
}
