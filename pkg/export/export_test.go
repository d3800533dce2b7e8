package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Summary: []Field{{Label: "Student", Value: "stu-1"}, {Label: "GPA", Value: "3.10"}},
		Headers: []string{"Subject", "Percentage"},
		Rows: []map[string]string{
			{"Subject": "Math", "Percentage": "81.50"},
			{"Subject": "Physics", "Percentage": "70.00"},
		},
	}
}

func TestCSVExporterRendersSummaryThenTable(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(out), "Student,stu-1\nGPA,3.10\n"))
	assert.True(t, strings.HasSuffix(string(out), "Subject,Percentage\nMath,81.50\nPhysics,70.00\n"))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterProducesDocument(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Report Card")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "empty")
	assert.Error(t, err)
}
