package flightdelays

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapml/internal/config"
	"github.com/leapstack-labs/leapml/internal/runner"
	"github.com/leapstack-labs/leapml/pkg/pipeline"
	"github.com/leapstack-labs/leapml/pkg/table"
	"github.com/leapstack-labs/leapml/pkg/tuning"
)

// Logical dataset names used by the pipeline nodes.
const (
	DatasetRaw         = "flights_raw"
	DatasetSelected    = "flights_selected"
	DatasetClean       = "flights_clean"
	DatasetFeatures    = "flights_features"
	DatasetHoldout     = "flights_holdout"
	DatasetPredictions = "predictions"
)

// SelectColumns keeps only the configured raw input columns.
func SelectColumns(logger *slog.Logger, columns []string) runner.Func {
	return func(_ context.Context, inputs map[string]*table.Table) (map[string]*table.Table, error) {
		tbl := inputs[DatasetRaw]
		out, err := tbl.Select(columns...)
		if err != nil {
			return nil, err
		}
		logger.Debug("selected columns", "columns", columns, "rows", out.NumRows())
		return map[string]*table.Table{DatasetSelected: out}, nil
	}
}

// CleanData normalizes the carrier code and drops unusable rows. The
// Reporting_Airline value is trimmed and uppercased into a new Airline
// column; rows whose code is not exactly two characters are removed,
// then any row still carrying a null is dropped.
func CleanData(logger *slog.Logger) runner.Func {
	return func(_ context.Context, inputs map[string]*table.Table) (map[string]*table.Table, error) {
		tbl := inputs[DatasetSelected]
		before := tbl.NumRows()

		src, err := tbl.Column("Reporting_Airline")
		if err != nil {
			return nil, err
		}
		if src.Kind != table.String {
			return nil, fmt.Errorf("column %q must be a string column, got %s", src.Name, src.Kind)
		}

		airline := make([]string, src.Len())
		for i := range airline {
			if src.IsNull(i) {
				continue
			}
			airline[i] = strings.ToUpper(strings.TrimSpace(src.Strings[i]))
		}

		out, err := tbl.WithColumn(table.NewStringColumn("Airline", airline))
		if err != nil {
			return nil, err
		}
		out = out.Drop("Reporting_Airline")
		out = out.Filter(func(row int) bool { return len(airline[row]) == 2 })
		out = out.DropNulls()

		logger.Info("cleaned flight data", "rows_before", before, "rows_after", out.NumRows())
		return map[string]*table.Table{DatasetClean: out}, nil
	}
}

// ExtractFeatures derives the model input columns: DepHour from the
// hhmm departure time, DepMonth and DepYear from the YYYY-MM-DD flight
// date. The raw DepTime and FlightDate columns are dropped.
func ExtractFeatures(logger *slog.Logger) runner.Func {
	return func(_ context.Context, inputs map[string]*table.Table) (map[string]*table.Table, error) {
		tbl := inputs[DatasetClean]
		n := tbl.NumRows()

		depTime, err := tbl.Column("DepTime")
		if err != nil {
			return nil, err
		}
		flightDate, err := tbl.Column("FlightDate")
		if err != nil {
			return nil, err
		}
		if flightDate.Kind != table.String {
			return nil, fmt.Errorf("column %q must be a string column, got %s", flightDate.Name, flightDate.Kind)
		}

		depHour := make([]int64, n)
		depMonth := make([]int64, n)
		depYear := make([]int64, n)
		for i := 0; i < n; i++ {
			t, err := depTime.Float(i)
			if err != nil {
				return nil, fmt.Errorf("column DepTime row %d: %w", i, err)
			}
			depHour[i] = int64(t) / 100

			year, month, err := parseFlightDate(flightDate.Strings[i])
			if err != nil {
				return nil, fmt.Errorf("column FlightDate row %d: %w", i, err)
			}
			depYear[i] = year
			depMonth[i] = month
		}

		out := tbl
		for _, col := range []*table.Column{
			table.NewIntColumn("DepHour", depHour),
			table.NewIntColumn("DepMonth", depMonth),
			table.NewIntColumn("DepYear", depYear),
		} {
			if out, err = out.WithColumn(col); err != nil {
				return nil, err
			}
		}
		out = out.Drop("DepTime", "FlightDate")

		logger.Debug("extracted features", "rows", out.NumRows(), "columns", out.Names())
		return map[string]*table.Table{DatasetFeatures: out}, nil
	}
}

// parseFlightDate splits a YYYY-MM-DD date into year and month.
func parseFlightDate(s string) (year, month int64, err error) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return 0, 0, fmt.Errorf("invalid flight date %q, want YYYY-MM-DD", s)
	}
	y, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid flight date %q, want YYYY-MM-DD", s)
	}
	m, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("invalid flight date %q, want YYYY-MM-DD", s)
	}
	return y, m, nil
}

// TrainModel runs the hyperparameter search over the configured grid,
// refits the winner on the full feature table, saves the fitted model
// to the model directory, and emits the scored table as predictions.
// The validation rows of the tuning split, scored by the final model,
// come out as a second dataset for downstream accuracy reporting.
func TrainModel(logger *slog.Logger, cfg *config.Config) runner.Func {
	return func(ctx context.Context, inputs map[string]*table.Table) (map[string]*table.Table, error) {
		tbl := inputs[DatasetFeatures]

		split := &tuning.TrainValidationSplit{
			Build: func(params tuning.ParamMap) (*pipeline.Pipeline, error) {
				return BuildPipeline(logger, cfg.Features, cfg.Model, params)
			},
			Grid: ParamGrid(cfg.Model),
			Evaluator: &tuning.BinaryClassificationEvaluator{
				LabelCol:       cfg.Features.TargetField,
				PredictionCol:  "prediction",
				ProbabilityCol: "probability",
				Metric:         cfg.Model.Metric,
			},
			TrainRatio: cfg.Model.TrainRatio,
			Seed:       cfg.Model.Seed,
			Logger:     logger,
		}

		result, err := split.Fit(ctx, tbl)
		if err != nil {
			return nil, fmt.Errorf("training failed: %w", err)
		}
		logger.Info("selected model",
			"params", result.Best.String(),
			"metric", cfg.Model.Metric,
			"score", result.BestMetric,
			"candidates", len(result.Candidates))

		scored, err := result.Model.Transform(ctx, tbl)
		if err != nil {
			return nil, fmt.Errorf("scoring failed: %w", err)
		}
		predictions := scored.Drop(IntermediateColumns(cfg.Features)...)

		// Reproduce the tuning split so the held-out rows can be scored
		// by the refitted model.
		_, validation, err := tbl.RandomSplit(cfg.Model.TrainRatio, cfg.Model.Seed)
		if err != nil {
			return nil, err
		}
		scoredHoldout, err := result.Model.Transform(ctx, validation)
		if err != nil {
			return nil, fmt.Errorf("scoring held-out rows failed: %w", err)
		}
		holdout := scoredHoldout.Drop(IntermediateColumns(cfg.Features)...)

		if cfg.Job.ModelDir != "" {
			if err := result.Model.Save(cfg.Job.ModelDir); err != nil {
				return nil, err
			}
			logger.Info("saved model", "dir", cfg.Job.ModelDir)
		}

		return map[string]*table.Table{
			DatasetPredictions: predictions,
			DatasetHoldout:     holdout,
		}, nil
	}
}

// Score reports the final model's accuracy on the held-out rows, the
// fraction of delays predicted correctly regardless of tuning metric.
func Score(logger *slog.Logger, cfg *config.Config) runner.Func {
	return func(_ context.Context, inputs map[string]*table.Table) (map[string]*table.Table, error) {
		tbl := inputs[DatasetHoldout]

		eval := &tuning.BinaryClassificationEvaluator{
			LabelCol:      cfg.Features.TargetField,
			PredictionCol: "prediction",
			Metric:        tuning.MetricAccuracy,
		}
		accuracy, err := eval.Evaluate(tbl)
		if err != nil {
			return nil, fmt.Errorf("evaluating held-out rows: %w", err)
		}

		logger.Info("model accuracy on held-out rows",
			"accuracy", fmt.Sprintf("%.4f", accuracy),
			"rows", tbl.NumRows())
		return map[string]*table.Table{}, nil
	}
}
