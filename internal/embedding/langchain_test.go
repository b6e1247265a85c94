package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UnknownProviderErrors(t *testing.T) {
	_, err := New("carrier-pigeon", "", "", "")
	require.Error(t, err)
}

func TestNew_StaticProviderNeedsNoNetworkConfig(t *testing.T) {
	p, err := New("static", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "static-768", p.ModelName())
}

func TestNewOllamaProvider_DefaultsModelWhenEmpty(t *testing.T) {
	p, err := NewOllamaProvider("http://localhost:11434", "")
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", p.ModelName())
}
