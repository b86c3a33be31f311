package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storm-decay-lab/internal/domain"
)

const issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"

func wdcLine(yy, mm, dd int, century string, base int, values [24]int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DST%02d%02d*%02dRRX %2s%4d", yy, mm, dd, century, base)
	for _, v := range values {
		fmt.Fprintf(&b, "%4d", v)
	}
	b.WriteString("   0")
	return b.String()
}

func TestParseDstWDC(t *testing.T) {
	var hours [24]int
	for h := range hours {
		hours[h] = -10 * h
	}
	hours[3] = 9999

	data := strings.Join([]string{
		"header line ignored",
		wdcLine(24, 5, 11, "20", 0, hours),
		wdcLine(89, 3, 13, "", 0, [24]int{-100}),
	}, "\n")

	samples, err := ParseDstWDC(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, samples, 23+24)

	assert.Equal(t, time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC), samples[0].Time)
	assert.Equal(t, 0.0, samples[0].NanoTesla)
	// hour 3 was missing
	assert.Equal(t, time.Date(2024, 5, 11, 4, 0, 0, 0, time.UTC), samples[3].Time)
	assert.Equal(t, -40.0, samples[3].NanoTesla)

	// blank century means 19xx
	assert.Equal(t, time.Date(1989, 3, 13, 0, 0, 0, 0, time.UTC), samples[23].Time)
	assert.Equal(t, -100.0, samples[23].NanoTesla)
}

func TestParseDstWDC_BaseValue(t *testing.T) {
	samples, err := ParseDstWDC(strings.NewReader(wdcLine(3, 10, 30, "20", -3, [24]int{-83})))
	require.NoError(t, err)
	assert.Equal(t, -383.0, samples[0].NanoTesla)
}

func TestParseDstWDC_Malformed(t *testing.T) {
	_, err := ParseDstWDC(strings.NewReader("DST2405*11RRX 20   0  -1"))
	assert.ErrorIs(t, err, ErrMalformedRecord)

	line := wdcLine(24, 5, 11, "20", 0, [24]int{})
	line = line[:24] + "  x " + line[28:]
	_, err = ParseDstWDC(strings.NewReader(line))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestDstCSV_RoundTrip(t *testing.T) {
	in := []*domain.IndexSample{
		{Time: time.Date(2024, 5, 10, 17, 0, 0, 0, time.UTC), NanoTesla: -112},
		{Time: time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC), NanoTesla: -412.5},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDstCSV(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), "TIMESTAMP,nT\n"))

	out, err := ReadDstCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadDstCSV_BOMAndMissingColumn(t *testing.T) {
	out, err := ReadDstCSV(strings.NewReader("\ufeffTIMESTAMP,nT\n2024-05-11,-7\n"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, -7.0, out[0].NanoTesla)

	_, err = ReadDstCSV(strings.NewReader("TIME,nT\n2024-05-11,-7\n"))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestMagnitude(t *testing.T) {
	in := []*domain.IndexSample{{NanoTesla: -20}, {NanoTesla: 5}}
	out := Magnitude(in)
	assert.Equal(t, 20.0, out[0].NanoTesla)
	assert.Equal(t, 5.0, out[1].NanoTesla)
	assert.Equal(t, -20.0, in[0].NanoTesla)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2022, 2, 3, 4, 5, 6, 0, time.UTC)
	for _, s := range []string{"2022-02-03T04:05:06Z", "2022-02-03 04:05:06", "2022-02-03T04:05:06"} {
		got, err := ParseTimestamp(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}

	got, err := ParseTimestamp("2022-02-03T04:05:06.500000")
	require.NoError(t, err)
	assert.Equal(t, want.Add(500*time.Millisecond), got)

	_, err = ParseTimestamp("yesterday")
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestMeanMotionToAltitudeKM(t *testing.T) {
	assert.InDelta(t, 548.376, MeanMotionToAltitudeKM(15.06), 1e-3)
	assert.InDelta(t, 274.359, MeanMotionToAltitudeKM(16.0), 1e-3)
	assert.Greater(t, MeanMotionToAltitudeKM(15.0), MeanMotionToAltitudeKM(15.5))
}

func TestBstarFromLine1(t *testing.T) {
	got, err := BstarFromLine1(issLine1)
	require.NoError(t, err)
	assert.InDelta(t, -1.1606e-5, got, 1e-12)

	positive := issLine1[:53] + " 12345-3" + issLine1[61:]
	got, err = BstarFromLine1(positive)
	require.NoError(t, err)
	assert.InDelta(t, 1.2345e-4, got, 1e-12)

	_, err = BstarFromLine1("1 25544U")
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestReadGPHistoryJSON(t *testing.T) {
	data := `[
	  {"NORAD_CAT_ID":"44713","LAUNCH_DATE":"2019-11-11","EPOCH":"2022-02-03T04:05:06.000000",
	   "INCLINATION":"53.0544","MEAN_MOTION":"15.06","BSTAR":"0.00012"},
	  {"NORAD_CAT_ID":44713,"LAUNCH_DATE":null,"EPOCH":"2022-02-04T00:00:00",
	   "INCLINATION":53.05,"MEAN_MOTION":15.06,"BSTAR":null,"TLE_LINE1":"` + issLine1 + `"}
	]`

	elems, err := ReadGPHistoryJSON(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, elems, 2)

	first := elems[0]
	assert.Equal(t, 44713, first.CatalogID)
	assert.Equal(t, time.Date(2019, 11, 11, 0, 0, 0, 0, time.UTC), first.LaunchDate)
	assert.Equal(t, time.Date(2022, 2, 3, 4, 5, 6, 0, time.UTC), first.Epoch)
	assert.InDelta(t, 53.0544, first.Inclination, 1e-9)
	assert.InDelta(t, 548.376, first.AltitudeKM, 1e-3)
	assert.InDelta(t, 0.00012, first.Drag, 1e-12)

	second := elems[1]
	assert.True(t, second.LaunchDate.IsZero())
	assert.InDelta(t, -1.1606e-5, second.Drag, 1e-12)
}

func TestReadGPHistoryJSON_BadMeanMotion(t *testing.T) {
	_, err := ReadGPHistoryJSON(strings.NewReader(`[{"NORAD_CAT_ID":"1","EPOCH":"2022-02-03","MEAN_MOTION":"0"}]`))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestElementCSV_RoundTrip(t *testing.T) {
	in := []*domain.ElementSample{
		{
			CatalogID:   44713,
			LaunchDate:  time.Date(2019, 11, 11, 0, 0, 0, 0, time.UTC),
			Epoch:       time.Date(2022, 2, 3, 4, 5, 6, 0, time.UTC),
			Inclination: 53.05,
			AltitudeKM:  549.5,
			Drag:        1.2e-4,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteElementCSV(&buf, in))
	out, err := ReadElementCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadElementCSV_OptionalInclination(t *testing.T) {
	data := "NORAD_CAT_ID,LAUNCH_DATE,EPOCH,KM,DRAG\n44713,2019-11-11,2022-02-03 04:05:06,549.5,0.0001\n"
	out, err := ReadElementCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0.0, out[0].Inclination)
	assert.Equal(t, 549.5, out[0].AltitudeKM)

	_, err = ReadElementCSV(strings.NewReader("NORAD_CAT_ID,LAUNCH_DATE,EPOCH,KM,DRAG\nabc,,2022-02-03,1,1\n"))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestExtractCatalogNumbers(t *testing.T) {
	line1b := "1 44713U 19074A   22034.17021991  .00001103  00000-0  92990-4 0  9991"
	data := strings.Join([]string{
		"ISS (ZARYA)",
		issLine1,
		"2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537",
		"garbage",
		"STARLINK-1007",
		line1b,
		"2 44713  53.0544 219.4311 0001421  95.3011 264.8132 15.06397330122446",
		"ISS (ZARYA)",
		issLine1,
		"2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537",
	}, "\n")

	ids, err := ExtractCatalogNumbers(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []int{25544, 44713}, ids)
}

func TestDiffCatalog(t *testing.T) {
	known := []int{3, 1}
	current := []int{5, 1, 4, 5}

	added, merged := DiffCatalog(current, known)

	assert.Equal(t, []int{5, 4}, added)
	assert.Equal(t, []int{1, 3, 4, 5}, merged)
	assert.Equal(t, []int{3, 1}, known)
}

func TestCatalogList_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCatalogList(&buf, []int{44713, 44714}))

	ids, err := ReadCatalogList(strings.NewReader("# starlink\n" + buf.String() + "\n"))
	require.NoError(t, err)
	assert.Equal(t, []int{44713, 44714}, ids)

	_, err = ReadCatalogList(strings.NewReader("44713\nx\n"))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestReadOrbitRaiseCSV(t *testing.T) {
	data := "LAUNCH_DATE,ORBIT_RAISE_COMEPLETE\n2019-11-11,2020-01-20\n2020-01-07,2020-03-01 12:00:00\n"
	raise, err := ReadOrbitRaiseCSV(strings.NewReader(data))
	require.NoError(t, err)

	got, ok := raise.CompleteFor(time.Date(2019, 11, 11, 15, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 1, 20, 0, 0, 0, 0, time.UTC), got)

	got, ok = raise.CompleteFor(time.Date(2020, 1, 7, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC), got)

	_, ok = raise.CompleteFor(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)

	raise, err = ReadOrbitRaiseCSV(strings.NewReader("LAUNCH_DATE,ORBIT_RAISE_COMPLETE\n2019-11-11,2020-01-20\n"))
	require.NoError(t, err)
	assert.Len(t, raise, 1)

	_, err = ReadOrbitRaiseCSV(strings.NewReader("LAUNCH_DATE,DONE\n2019-11-11,2020-01-20\n"))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestLoadElementFiles(t *testing.T) {
	dir := t.TempDir()

	csv := "NORAD_CAT_ID,LAUNCH_DATE,EPOCH,KM,DRAG\n" +
		"100,2020-01-01,2021-01-01,550,0.0001\n" +
		"100,2020-01-01,2021-01-02,549,0.0002\n"
	json := `[{"NORAD_CAT_ID":"200","EPOCH":"2021-01-01","MEAN_MOTION":"15.06","BSTAR":"0"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "100.csv"), []byte(csv), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "200.json"), []byte(json), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	paths, err := ElementFiles(dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	groups, err := LoadElementFiles(context.Background(), paths, 2)
	require.NoError(t, err)
	assert.Len(t, groups[100], 2)
	assert.Len(t, groups[200], 1)
}

func TestLoadElementFiles_Error(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("NORAD_CAT_ID\n1\n"), 0o644))

	_, err := LoadElementFiles(context.Background(), []string{bad, filepath.Join(dir, "missing.csv")}, 0)
	assert.Error(t, err)
}
