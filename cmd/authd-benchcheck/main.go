// Command authd-benchcheck compares two `go test -bench` outputs and fails when a tracked
// benchmark regresses past its threshold.
//
//	go test -run '^$' -bench . -count 5 ./... > new.txt
//	authd-benchcheck -baseline old.txt -candidate new.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const (
	defaultThreshold = 0.30
	// Allocation counts are exact, so they get a tighter bound than timings.
	allocThreshold = 0.10
)

// trackedMetrics are the hot-path benchmarks of the engine and the scrape renderer.
var trackedMetrics = map[string][]string{
	"BenchmarkResolve":           {"ns/op", "allocs/op"},
	"BenchmarkIsLive":            {"ns/op", "allocs/op"},
	"BenchmarkRotateFromRefresh": {"ns/op"},
	"BenchmarkRender":            {"ns/op", "allocs/op"},
}

// samples maps benchmark name to unit to every observed value.
type samples map[string]map[string][]float64

type comparison struct {
	benchmark string
	metric    string
	baseline  float64
	candidate float64
	delta     float64
	limit     float64
}

func (c comparison) regressed() bool {
	return c.delta > c.limit
}

func main() {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
	)

	flag.StringVar(&baselinePath, "baseline", "", "path to baseline benchmark output")
	flag.StringVar(&candidatePath, "candidate", "", "path to candidate benchmark output")
	flag.Float64Var(&threshold, "threshold", defaultThreshold, "maximum allowed timing regression ratio (0.30 = +30%)")
	flag.Parse()

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	baseline, err := parseFile(baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseFile(candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	results, problems := compare(baseline, candidate, threshold)

	fmt.Println("benchmark metric baseline candidate delta")
	for _, r := range results {
		fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", r.benchmark, r.metric, r.baseline, r.candidate, r.delta*100)
		if r.regressed() {
			problems = append(problems, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)",
				r.benchmark, r.metric, r.delta*100, r.limit*100))
		}
	}

	if len(problems) > 0 {
		fmt.Fprintln(os.Stderr, "benchmark regression threshold exceeded:")
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "  - %s\n", p)
		}
		os.Exit(1)
	}
}

// compare returns one comparison per tracked metric, sorted by name, plus a problem for
// every metric that is missing or unusable.
func compare(baseline, candidate samples, threshold float64) ([]comparison, []string) {
	names := make([]string, 0, len(trackedMetrics))
	for name := range trackedMetrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		out      []comparison
		problems []string
	)
	for _, name := range names {
		for _, metric := range trackedMetrics[name] {
			base := baseline[name][metric]
			cand := candidate[name][metric]
			if len(base) == 0 || len(cand) == 0 {
				problems = append(problems, fmt.Sprintf("missing samples for %s %s", name, metric))
				continue
			}

			baseMedian := median(base)
			if baseMedian <= 0 {
				problems = append(problems, fmt.Sprintf("invalid baseline median for %s %s", name, metric))
				continue
			}
			candMedian := median(cand)

			limit := threshold
			if metric == "allocs/op" && allocThreshold < limit {
				limit = allocThreshold
			}
			out = append(out, comparison{
				benchmark: name,
				metric:    metric,
				baseline:  baseMedian,
				candidate: candMedian,
				delta:     (candMedian - baseMedian) / baseMedian,
				limit:     limit,
			})
		}
	}
	return out, problems
}

func parseFile(path string) (samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) (samples, error) {
	out := samples{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Benchmark") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		name := benchmarkName(fields[0])
		if _, ok := trackedMetrics[name]; !ok {
			continue
		}
		if _, ok := out[name]; !ok {
			out[name] = map[string][]float64{}
		}

		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			out[name][fields[i+1]] = append(out[name][fields[i+1]], value)
		}
	}
	return out, scanner.Err()
}

// benchmarkName strips the -GOMAXPROCS suffix.
func benchmarkName(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
