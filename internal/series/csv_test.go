package series

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVWithHeaderAndAbsentCells(t *testing.T) {
	input := `date,value
2024-01-01,1.5
2024-01-02,
2024-01-03,NA
2024-01-04,-2
`
	table, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"}, table.Timestamps)
	assert.Equal(t, 4, table.Series.Len())
	assert.Equal(t, []int{1, 2}, table.Series.Missing())
	assert.Equal(t, []float64{1.5, 0, 0, -2}, table.Series.Values())
}

func TestReadCSVWithoutHeader(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("1,0\n2,3.25\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3.25}, table.Series.Values())
	assert.Equal(t, 0, table.Series.MissingCount())
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,1\nb,oops\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = ReadCSV(strings.NewReader("onlyone\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected timestamp and value")
}

func TestReadCSVMalformedFirstValue(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("1,1.2.3\n2,4\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
	assert.Contains(t, err.Error(), `"1.2.3"`)
}

func TestReadCSVHeaderNames(t *testing.T) {
	for _, header := range []string{"t,value", "week,y1", "date,Влажность"} {
		t.Run(header, func(t *testing.T) {
			table, err := ReadCSV(strings.NewReader(header + "\n0,2\n1,3\n"))
			require.NoError(t, err)
			assert.Equal(t, []float64{2, 3}, table.Series.Values())
		})
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	ts, err := Encode([]float64{1.25, 0, -3}, []int{1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ts))
	assert.Equal(t, "t,value\n0,1.25\n1,\n2,-3\n", buf.String())

	table, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, ts.Values(), table.Series.Values())
	assert.Equal(t, ts.Missing(), table.Series.Missing())
}
