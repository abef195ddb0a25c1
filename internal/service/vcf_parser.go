package service

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/variantdb-pipeline/internal/domain"
)

// ParseResult is the outcome of parsing one variant file. Tokens preserve
// input line order; Skipped counts malformed non-comment lines, so
// len(Tokens)+Skipped equals the number of non-comment lines seen.
type ParseResult struct {
	Tokens  []string
	Skipped int
}

// VariantParser extracts normalized chrom-pos-ref-alt tokens from uploaded
// .vcf (tab-delimited) and .csv (comma-delimited) files.
type VariantParser struct {
	reporter domain.Reporter
	log      *logrus.Logger
}

// NewVariantParser creates a parser reporting skipped lines to reporter.
func NewVariantParser(reporter domain.Reporter, log *logrus.Logger) *VariantParser {
	return &VariantParser{reporter: reporter, log: log}
}

// IsVariantFile reports whether name carries a supported extension,
// case-insensitively.
func IsVariantFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".vcf", ".csv":
		return true
	}
	return false
}

// Parse reads path and returns the ordered token list. Malformed lines are
// skipped and reported with their 1-based line numbers; they never abort the
// file. A file yielding zero tokens returns domain.ErrNoVariants so callers
// can tell "nothing usable" from "not parsed yet".
func (p *VariantParser) Parse(path string) (*ParseResult, error) {
	delimiter, err := delimiterFor(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening variant file: %w", err)
	}
	defer f.Close()

	fileName := filepath.Base(path)
	result := &ParseResult{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r\n")

		// Header and comment lines are silently skipped.
		if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, delimiter)
		if len(fields) < 5 {
			result.Skipped++
			p.skip(fileName, lineNumber, "has fewer than five fields")
			continue
		}

		position := strings.TrimSpace(fields[1])
		if _, convErr := strconv.Atoi(position); convErr != nil {
			result.Skipped++
			p.skip(fileName, lineNumber, "has a non-numeric position")
			continue
		}

		chromosome := stripChrPrefix(strings.TrimSpace(fields[0]))
		ref := strings.TrimSpace(fields[3])
		alt := strings.TrimSpace(fields[4])

		result.Tokens = append(result.Tokens, fmt.Sprintf("%s-%s-%s-%s", chromosome, position, ref, alt))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading variant file: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"file":    fileName,
		"tokens":  len(result.Tokens),
		"skipped": result.Skipped,
	}).Info("Variant file parsed")

	if len(result.Tokens) == 0 {
		return result, fmt.Errorf("%s: %w", fileName, domain.ErrNoVariants)
	}
	return result, nil
}

func (p *VariantParser) skip(fileName string, lineNumber int, reason string) {
	p.reporter.Report(fmt.Sprintf("Variant in line %d from %s is irregular and was not parsed: line %s.",
		lineNumber, fileName, reason))
}

func delimiterFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vcf":
		return "\t", nil
	case ".csv":
		return ",", nil
	default:
		return "", fmt.Errorf("unsupported variant file extension: %s", filepath.Ext(path))
	}
}

func stripChrPrefix(chromosome string) string {
	if len(chromosome) >= 3 && strings.EqualFold(chromosome[:3], "chr") {
		return chromosome[3:]
	}
	return chromosome
}
