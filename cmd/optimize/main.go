// Package main provides CMA-ES optimization of the adaptive step controls:
// the cheapest settings that keep particles on their analytic paths.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/tracer/config"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// evalRow is one line of optimize_log.csv. Parameter columns follow
// NewParamVector's order.
type evalRow struct {
	Eval        int     `csv:"eval"`
	Fitness     float64 `csv:"fitness"`
	MeanError   float64 `csv:"mean_error"`
	Substeps    float64 `csv:"substeps"`
	InitialStep float64 `csv:"initial_step"`
	MaxStep     float64 `csv:"max_step"`
	MaxError    float64 `csv:"max_error"`
	NudgeFactor float64 `csv:"nudge_factor"`
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	flows := flag.String("flows", "uniform,vortex,shear,pulse", "Comma-separated analytic flows to evaluate")
	integrator := flag.String("integrator", "rk45", "Integrator to tune")
	accuracy := flag.Float64("accuracy", 1e-4, "Mean positional error worth one substep per particle window")
	cost := flag.Float64("cost", 0.05, "Weight of substeps per particle window")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}

	// Create output directory
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	// Load base config
	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Cfg()
	baseCfg.Integration.Integrator = *integrator
	if err := baseCfg.Refresh(); err != nil {
		log.Fatalf("invalid base config: %v", err)
	}

	params := NewParamVector()
	evaluator, err := NewFitnessEvaluator(params, strings.Split(*flows, ","), baseCfg, *accuracy, *cost)
	if err != nil {
		log.Fatalf("failed to build flows: %v", err)
	}

	dim := params.Dim()
	initX := params.Normalize(params.ExtractFromConfig(baseCfg))

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return evaluator.Evaluate(params.Denormalize(x))
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // Sequential evaluation; flows run in parallel
	}

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}

	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	logPath := filepath.Join(*outputDir, "optimize_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()
	headerWritten := false

	evalCount := 0
	bestFitness := 1e18
	var bestParams []float64
	startTime := time.Now()

	originalFunc := problem.Func
	problem.Func = func(x []float64) float64 {
		fitness := originalFunc(x)
		evalCount++

		clamped := params.Clamp(params.Denormalize(x))
		if fitness < bestFitness {
			bestFitness = fitness
			bestParams = append([]float64(nil), clamped...)
		}

		v := params.Values(clamped)
		row := []evalRow{{
			Eval:        evalCount,
			Fitness:     fitness,
			MeanError:   evaluator.LastError(),
			Substeps:    evaluator.LastSubsteps(),
			InitialStep: v[0],
			MaxStep:     v[1],
			MaxError:    v[2],
			NudgeFactor: v[3],
		}}
		if !headerWritten {
			err = gocsv.Marshal(row, logFile)
			headerWritten = true
		} else {
			err = gocsv.MarshalWithoutHeaders(row, logFile)
		}
		if err != nil {
			log.Printf("failed to log evaluation %d: %v", evalCount, err)
		}

		elapsed := time.Since(startTime)
		avgPerEval := elapsed / time.Duration(evalCount)
		remaining := time.Duration(*maxEvals-evalCount) * avgPerEval

		fmt.Printf("Eval %d/%d: fitness=%.4g error=%.3g substeps=%.2f (best=%.4g) | elapsed: %s, ETA: %s\n",
			evalCount, *maxEvals, fitness, evaluator.LastError(), evaluator.LastSubsteps(), bestFitness,
			formatDuration(elapsed), formatDuration(remaining))

		return fitness
	}

	fmt.Printf("Starting CMA-ES optimization with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Flows: %s, integrator: %s\n", *flows, *integrator)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}

	// Use best params found (may be from any evaluation, not just final)
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluation completed")
	}

	totalTime := time.Since(startTime)
	fmt.Printf("\nOptimization complete after %d evaluations in %s\n", evalCount, formatDuration(totalTime))
	fmt.Printf("Best fitness: %.6g\n", bestFitness)

	fmt.Println("\nBest parameters:")
	for i, v := range params.Values(bestParams) {
		fmt.Printf("  %s: %.6g\n", params.Specs[i].Path, v)
	}

	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	bestCfg.Integration.Integrator = *integrator
	params.ApplyToConfig(bestCfg, bestParams)

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}
}
