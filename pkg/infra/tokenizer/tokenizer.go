package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/sirupsen/logrus"
)

const (
	DefaultModel     = "gpt-4o"
	FallbackEncoding = "cl100k_base"
)

var setLoader sync.Once

//go:generate mockery --name=Counter --dir=. --output=./mocks --filename=counter_mock.go --case=underscore
type Counter interface {
	Count(text string) int
}

type counter struct {
	encoding *tiktoken.Tiktoken
	logger   *logrus.Logger
}

// NewCounter resolves the BPE encoding for model, then cl100k_base. Ranks are
// read from the embedded offline loader, so no network is needed. When no
// encoding loads, Count falls back to whitespace-separated words.
func NewCounter(model string, logger *logrus.Logger) Counter {
	setLoader.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	})
	if model == "" {
		model = DefaultModel
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"model": model,
			"error": err.Error(),
		}).Warn("no encoding for model, using " + FallbackEncoding)
		enc, err = tiktoken.GetEncoding(FallbackEncoding)
		if err != nil {
			logger.WithError(err).Warn("tiktoken unavailable, counting words")
			enc = nil
		}
	}
	return &counter{encoding: enc, logger: logger}
}

func (c *counter) Count(text string) (n int) {
	if text == "" {
		return 0
	}
	if c.encoding == nil {
		return WordCount(text)
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("error", r).Warn("token encoding failed, counting words")
			n = WordCount(text)
		}
	}()
	return len(c.encoding.Encode(text, nil, nil))
}

func WordCount(text string) int {
	return len(strings.Fields(text))
}
