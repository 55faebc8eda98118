// Command benchmark replays a QA evaluation set against the live retrieval
// pipeline and scores each fusion weight combination, so weight tuning is a
// measurement instead of a guess. The eval set is an .xlsx workbook with a
// question column and an expected-answer column; a citation counts as a hit
// when its excerpt contains the expected text.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"

	"github.com/covenantlabs/covenant/internal/bootstrap"
	"github.com/covenantlabs/covenant/internal/config"
	"github.com/covenantlabs/covenant/internal/core/domain"
	"github.com/covenantlabs/covenant/internal/core/ports"
	"github.com/covenantlabs/covenant/internal/observability/logging"
)

func main() {
	var (
		evalsetPath = flag.String("evalset", "", "path to the .xlsx evaluation set (required)")
		sheetName   = flag.String("sheet", "", "worksheet to read; defaults to the first sheet")
		weightsFlag = flag.String("weights", "1:1", "comma-separated lexical:vector weight combos, e.g. 1:1,0.8:1.2,2:1")
		rps         = flag.Float64("rps", 4, "questions per second sent to the pipeline")
		limit       = flag.Int("limit", 0, "score at most this many rows (0 means all)")
		reportPath  = flag.String("out", "", "write the sweep report to this .xlsx path")
	)
	flag.Parse()
	if *evalsetPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("covenant-benchmark", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cases, err := readEvalSet(*evalsetPath, *sheetName)
	if err != nil {
		log.Fatalf("evalset error: %v", err)
	}
	if *limit > 0 && *limit < len(cases) {
		cases = cases[:*limit]
	}
	combos, err := parseWeightCombos(*weightsFlag)
	if err != nil {
		log.Fatalf("weights error: %v", err)
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	limiter := rate.NewLimiter(rate.Limit(*rps), 1)
	runs := make([]comboRun, 0, len(combos))
	for _, combo := range combos {
		svc, err := app.NewAskService(combo.Lexical, combo.Vector)
		if err != nil {
			log.Fatalf("combo %.2f:%.2f: %v", combo.Lexical, combo.Vector, err)
		}
		log.Printf("sweeping lexical=%.2f vector=%.2f over %d questions", combo.Lexical, combo.Vector, len(cases))
		report, err := runCombo(ctx, svc, cases, limiter)
		if err != nil {
			log.Fatalf("combo %.2f:%.2f aborted: %v", combo.Lexical, combo.Vector, err)
		}
		runs = append(runs, comboRun{Combo: combo, Report: report})
	}

	printSummary(runs)
	if best, ok := bestRun(runs); ok {
		log.Printf("best combo by mrr: lexical=%.2f vector=%.2f (mrr=%.3f hit_rate=%.3f)",
			best.Combo.Lexical, best.Combo.Vector, best.Report.MRR(), best.Report.HitRate())
	}
	if *reportPath != "" {
		if err := writeReport(*reportPath, runs); err != nil {
			log.Fatalf("report error: %v", err)
		}
		log.Printf("report written to %s", *reportPath)
	}
}

type evalCase struct {
	Question string
	Expected string
}

// readEvalSet loads scorable rows: column A is the question, column B the
// expected answer text. A header row and rows missing either column are
// skipped.
func readEvalSet(path, sheet string) ([]evalCase, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open evalset: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var cases []evalCase
	for i, row := range rows {
		question := cellAt(row, 0)
		expected := cellAt(row, 1)
		if i == 0 && strings.EqualFold(question, "question") {
			continue
		}
		if question == "" || expected == "" {
			continue
		}
		cases = append(cases, evalCase{Question: question, Expected: expected})
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("sheet %q has no scorable rows (need question and expected columns)", sheet)
	}
	return cases, nil
}

func cellAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

type weightCombo struct {
	Lexical float64
	Vector  float64
}

func parseWeightCombos(s string) ([]weightCombo, error) {
	var combos []weightCombo
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lexRaw, vecRaw, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("weight combo %q: want lexical:vector", part)
		}
		lex, err := strconv.ParseFloat(strings.TrimSpace(lexRaw), 64)
		if err != nil {
			return nil, fmt.Errorf("weight combo %q: %w", part, err)
		}
		vec, err := strconv.ParseFloat(strings.TrimSpace(vecRaw), 64)
		if err != nil {
			return nil, fmt.Errorf("weight combo %q: %w", part, err)
		}
		combos = append(combos, weightCombo{Lexical: lex, Vector: vec})
	}
	if len(combos) == 0 {
		return nil, fmt.Errorf("no weight combos in %q", s)
	}
	return combos, nil
}

type comboRun struct {
	Combo  weightCombo
	Report comboReport
}

type comboReport struct {
	Scored        int
	Hits          int
	CitationCount int
	Degraded      int
	Failures      int

	reciprocalSum float64
}

func (r comboReport) HitRate() float64 {
	if r.Scored == 0 {
		return 0
	}
	return float64(r.Hits) / float64(r.Scored)
}

func (r comboReport) MRR() float64 {
	if r.Scored == 0 {
		return 0
	}
	return r.reciprocalSum / float64(r.Scored)
}

func (r comboReport) AvgCitations() float64 {
	if r.Scored == 0 {
		return 0
	}
	return float64(r.CitationCount) / float64(r.Scored)
}

func runCombo(ctx context.Context, svc ports.QuestionService, cases []evalCase, limiter *rate.Limiter) (comboReport, error) {
	var report comboReport
	for _, c := range cases {
		if err := limiter.Wait(ctx); err != nil {
			return report, err
		}
		askCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		result, err := svc.Ask(askCtx, c.Question)
		cancel()
		if err != nil {
			report.Failures++
			continue
		}
		report.Scored++
		report.CitationCount += len(result.Citations)
		if len(result.FailedBackends) > 0 {
			report.Degraded++
		}
		if rank := firstRelevantRank(result.Citations, c.Expected); rank > 0 {
			report.Hits++
			report.reciprocalSum += 1 / float64(rank)
		}
	}
	return report, nil
}

// firstRelevantRank returns the 1-based rank of the first citation whose
// excerpt contains the expected text, ignoring case; 0 when none does.
func firstRelevantRank(citations []domain.Citation, expected string) int {
	needle := strings.ToLower(expected)
	for i, c := range citations {
		if strings.Contains(strings.ToLower(c.Excerpt), needle) {
			return i + 1
		}
	}
	return 0
}

func bestRun(runs []comboRun) (comboRun, bool) {
	if len(runs) == 0 {
		return comboRun{}, false
	}
	best := runs[0]
	for _, run := range runs[1:] {
		if run.Report.MRR() > best.Report.MRR() {
			best = run
		}
	}
	return best, true
}

func printSummary(runs []comboRun) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LEX\tVEC\tSCORED\tHIT RATE\tMRR\tAVG CITATIONS\tDEGRADED\tFAILURES")
	for _, run := range runs {
		fmt.Fprintf(w, "%.2f\t%.2f\t%d\t%.3f\t%.3f\t%.2f\t%d\t%d\n",
			run.Combo.Lexical, run.Combo.Vector,
			run.Report.Scored, run.Report.HitRate(), run.Report.MRR(), run.Report.AvgCitations(),
			run.Report.Degraded, run.Report.Failures)
	}
	_ = w.Flush()
}

func writeReport(path string, runs []comboRun) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "sweep"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := []any{"weight_lexical", "weight_vector", "scored", "hit_rate", "mrr", "avg_citations", "degraded", "failures"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, run := range runs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			run.Combo.Lexical, run.Combo.Vector,
			run.Report.Scored, run.Report.HitRate(), run.Report.MRR(), run.Report.AvgCitations(),
			run.Report.Degraded, run.Report.Failures,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}
