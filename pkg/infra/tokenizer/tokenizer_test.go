package tokenizer

import (
	"testing"

	"github.com/NeuralTrust/docsifer/pkg/infra/logger"
	"github.com/stretchr/testify/assert"
)

func TestCounter_Count(t *testing.T) {
	c := NewCounter("", logger.NewNopLogger())

	assert.Equal(t, 0, c.Count(""))
	n := c.Count("# Title\n\nHello world, this is Markdown.")
	assert.Greater(t, n, 0)
	assert.GreaterOrEqual(t, n, WordCount("# Title\n\nHello world, this is Markdown."))
}

func TestCounter_UnknownModelFallsBack(t *testing.T) {
	c := NewCounter("not-a-real-model", logger.NewNopLogger()).(*counter)

	assert.NotNil(t, c.encoding)
	assert.Greater(t, c.Count("hello world"), 0)
}

func TestCounter_WithoutEncodingCountsWords(t *testing.T) {
	c := &counter{logger: logger.NewNopLogger()}

	assert.Equal(t, 4, c.Count("one two\tthree\nfour"))
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount("   \n\t"))
	assert.Equal(t, 3, WordCount(" a  b c "))
}
