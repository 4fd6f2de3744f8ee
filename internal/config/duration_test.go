package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{`d: 3s`, 3 * time.Second},
		{`d: 2`, 2 * time.Second},
		{`d: 1.5`, 1500 * time.Millisecond},
		{`d: "250ms"`, 250 * time.Millisecond},
		{`d: ""`, 0},
	}
	for _, tt := range tests {
		var v struct {
			D Duration `yaml:"d"`
		}
		require.NoError(t, yaml.Unmarshal([]byte(tt.in), &v), tt.in)
		assert.Equal(t, tt.want, v.D.Duration, tt.in)
	}
}

func TestDuration_UnmarshalYAMLRejects(t *testing.T) {
	var v struct {
		D Duration `yaml:"d"`
	}
	assert.Error(t, yaml.Unmarshal([]byte(`d: [1]`), &v))
	assert.Error(t, yaml.Unmarshal([]byte(`d: later`), &v))
}

func TestDuration_MarshalYAML(t *testing.T) {
	out, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{DurationFrom(90 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, "d: 1m30s\n", string(out))
}
