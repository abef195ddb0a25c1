package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/variantdb-pipeline/internal/domain"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func writeVariantFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIsVariantFile(t *testing.T) {
	assert.True(t, IsVariantFile("Patient1.vcf"))
	assert.True(t, IsVariantFile("Patient1.VCF"))
	assert.True(t, IsVariantFile("Patient1.csv"))
	assert.False(t, IsVariantFile("Patient1.txt"))
	assert.False(t, IsVariantFile("Patient1"))
}

func TestVariantParser_ParseVCF(t *testing.T) {
	content := "##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\n" +
		"chr17\t45983420\trs1\tG\tT\n" +
		"11\t2164285\trs2\tC\tT\n"
	path := writeVariantFile(t, "Patient1.vcf", content)

	capture := &domain.CaptureReporter{}
	parser := NewVariantParser(capture, testLogger())

	result, err := parser.Parse(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"17-45983420-G-T", "11-2164285-C-T"}, result.Tokens)
	assert.Zero(t, result.Skipped)
	assert.Empty(t, capture.Messages())
}

func TestVariantParser_ParseCSV(t *testing.T) {
	content := "chr17,45983420,rs1,G,T\nchrX,1000,rs2,A,C\n"
	path := writeVariantFile(t, "Patient2.csv", content)

	parser := NewVariantParser(&domain.CaptureReporter{}, testLogger())

	result, err := parser.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"17-45983420-G-T", "X-1000-A-C"}, result.Tokens)
}

func TestVariantParser_SkipsMalformedLines(t *testing.T) {
	content := "#CHROM\tPOS\tID\tREF\tALT\n" +
		"17\t45983420\trs1\tG\tT\n" +
		"17\tforty\trs2\tG\tT\n" + // non-numeric position
		"17\t1000\n" + // too few fields
		"11\t2164285\trs3\tC\tT\n"
	path := writeVariantFile(t, "Patient3.vcf", content)

	capture := &domain.CaptureReporter{}
	parser := NewVariantParser(capture, testLogger())

	result, err := parser.Parse(path)
	require.NoError(t, err)

	// Every non-comment line is accounted for: parsed or skipped.
	assert.Len(t, result.Tokens, 2)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 4, len(result.Tokens)+result.Skipped)

	messages := capture.Messages()
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0], "line 3")
	assert.Contains(t, messages[0], "Patient3.vcf")
	assert.Contains(t, messages[1], "line 4")
}

func TestVariantParser_NoUsableVariants(t *testing.T) {
	content := "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\nbroken line\n"
	path := writeVariantFile(t, "Patient4.vcf", content)

	parser := NewVariantParser(&domain.CaptureReporter{}, testLogger())

	result, err := parser.Parse(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoVariants))
	assert.Empty(t, result.Tokens)
	assert.Equal(t, 1, result.Skipped)
}

func TestVariantParser_UnsupportedExtension(t *testing.T) {
	parser := NewVariantParser(&domain.CaptureReporter{}, testLogger())
	_, err := parser.Parse("Patient5.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported variant file extension")
}
