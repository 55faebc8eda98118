package main

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/covenantlabs/covenant/internal/core/domain"
)

func TestReadEvalSetSkipsHeaderAndUnscoredRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evalset.xlsx")
	f := excelize.NewFile()
	rows := [][]any{
		{"Question", "Expected"},
		{"Who are the parties?", "Vallen Distribution"},
		{"", "expected without a question"},
		{"question without an expected answer", ""},
		{"When does the NDA expire?", "August 31, 2026"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	_ = f.Close()

	cases, err := readEvalSet(path, "")
	if err != nil {
		t.Fatalf("readEvalSet: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 scorable cases, got %d: %+v", len(cases), cases)
	}
	if cases[0].Question != "Who are the parties?" || cases[0].Expected != "Vallen Distribution" {
		t.Fatalf("unexpected first case: %+v", cases[0])
	}
	if cases[1].Expected != "August 31, 2026" {
		t.Fatalf("unexpected second case: %+v", cases[1])
	}
}

func TestReadEvalSetRejectsEmptyWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	f := excelize.NewFile()
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	_ = f.Close()

	if _, err := readEvalSet(path, ""); err == nil {
		t.Fatal("expected an error for a workbook with no scorable rows")
	}
}

func TestParseWeightCombos(t *testing.T) {
	combos, err := parseWeightCombos(" 1:1, 0.8:1.2 ,2:1")
	if err != nil {
		t.Fatalf("parseWeightCombos: %v", err)
	}
	if len(combos) != 3 {
		t.Fatalf("expected 3 combos, got %d", len(combos))
	}
	if combos[1].Lexical != 0.8 || combos[1].Vector != 1.2 {
		t.Fatalf("unexpected second combo: %+v", combos[1])
	}

	for _, bad := range []string{"", "1", "one:two", "1:1,:2"} {
		if _, err := parseWeightCombos(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestFirstRelevantRankMatchesCaseInsensitively(t *testing.T) {
	citations := []domain.Citation{
		{DocID: "doc-1", Excerpt: "This Agreement shall be governed by the laws of Delaware."},
		{DocID: "doc-1", Excerpt: "The term expires on August 31, 2026."},
	}

	if rank := firstRelevantRank(citations, "august 31, 2026"); rank != 2 {
		t.Fatalf("expected rank 2, got %d", rank)
	}
	if rank := firstRelevantRank(citations, "DELAWARE"); rank != 1 {
		t.Fatalf("expected rank 1, got %d", rank)
	}
	if rank := firstRelevantRank(citations, "New York"); rank != 0 {
		t.Fatalf("expected rank 0 for no match, got %d", rank)
	}
}

func TestComboReportGuardsZeroScored(t *testing.T) {
	var report comboReport
	if report.HitRate() != 0 || report.MRR() != 0 || report.AvgCitations() != 0 {
		t.Fatalf("zero-scored report must score 0 everywhere: %+v", report)
	}

	report = comboReport{Scored: 4, Hits: 2, CitationCount: 10, reciprocalSum: 1.5}
	if report.HitRate() != 0.5 {
		t.Fatalf("hit rate = %f, want 0.5", report.HitRate())
	}
	if report.MRR() != 0.375 {
		t.Fatalf("mrr = %f, want 0.375", report.MRR())
	}
	if report.AvgCitations() != 2.5 {
		t.Fatalf("avg citations = %f, want 2.5", report.AvgCitations())
	}
}
