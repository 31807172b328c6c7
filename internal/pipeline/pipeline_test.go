package pipeline

import (
	"testing"

	"github.com/ocrchestra/ocrchestra-core/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestIsOCRRequiredWithoutExistingText(t *testing.T) {
	assert.True(t, IsOCRRequired(false, config.Default()))
}

func TestIsOCRRequiredSkipsExistingTextByDefault(t *testing.T) {
	assert.False(t, IsOCRRequired(true, config.Default()))
}

func TestIsOCRRequiredRedoOverridesSkip(t *testing.T) {
	opts := config.Default()
	opts.RedoOCR = true
	assert.True(t, IsOCRRequired(true, opts))
}

func TestIsOCRRequiredForceOverridesSkip(t *testing.T) {
	opts := config.Default()
	opts.Force = true
	assert.True(t, IsOCRRequired(true, opts))
}
