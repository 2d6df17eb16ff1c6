package ux

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Value int    `json:"value" yaml:"value"`
}

type stringer struct{}

func (stringer) String() string { return "from stringer" }

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{FormatJSON, false},
		{FormatYAML, false},
		{FormatText, false},
		{"", false},
		{"xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f, err := NewFormatter(tt.format, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, f)
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter(FormatJSON, &FormatterOptions{Writer: &buf})
	require.NoError(t, err)

	require.NoError(t, f.Format(sample{Name: "raw", Value: 3}))
	assert.Contains(t, buf.String(), "\n  \"name\"", "indented by default")

	var got sample
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sample{Name: "raw", Value: 3}, got)
}

func TestJSONFormatter_Compact(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter(FormatJSON, &FormatterOptions{Writer: &buf, Compact: true})
	require.NoError(t, err)

	require.NoError(t, f.Format(sample{Name: "raw", Value: 3}))
	assert.Equal(t, "{\"name\":\"raw\",\"value\":3}\n", buf.String())
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter(FormatYAML, &FormatterOptions{Writer: &buf})
	require.NoError(t, err)

	require.NoError(t, f.Format(sample{Name: "raw", Value: 3}))

	var got sample
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sample{Name: "raw", Value: 3}, got)
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter(FormatText, &FormatterOptions{Writer: &buf})
	require.NoError(t, err)

	require.NoError(t, f.Format("plain"))
	require.NoError(t, f.Format(stringer{}))
	require.NoError(t, f.Format(PlanView{Phases: []PhasePlan{{Phase: "build"}}}))
	assert.Equal(t, "plain\nfrom stringer\nBUILD\n  (no targets)\n", buf.String())

	err = f.Format(sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--format json")
}
