package config

// Default configuration values.
const (
	DefaultCatalogFile = "catalog.yaml"
	DefaultStateFile   = ".leapml/state.db"
	DefaultModelDir    = "data/model"
	DefaultEnv         = "local"
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=json
)

// DefaultFeatures returns the field grouping used by the flight delay
// pipeline when the config file does not override it.
func DefaultFeatures() FeatureConfig {
	return FeatureConfig{
		StringFields:      []string{"Airline"},
		CategoricalFields: []string{"DepHour", "DepMonth", "DepYear"},
		ContinuousFields:  []string{"Distance"},
		TargetField:       "DepDel15",
	}
}

// DefaultModel returns baseline classifier settings.
func DefaultModel() ModelConfig {
	return ModelConfig{
		NumTrees:            20,
		MaxDepth:            5,
		MinInstancesPerNode: 1,
		TrainRatio:          0.75,
		Seed:                42,
		Metric:              "areaUnderROC",
	}
}

// DefaultJob returns baseline batch job settings.
func DefaultJob() JobConfig {
	return JobConfig{
		Columns:  []string{"FlightDate", "Reporting_Airline", "DepTime", "DepDel15", "Distance"},
		ModelDir: DefaultModelDir,
	}
}

// ApplyDefaults fills zero-valued sections of a Config.
func ApplyDefaults(c *Config) {
	if c == nil {
		return
	}
	if c.CatalogPath == "" {
		c.CatalogPath = DefaultCatalogFile
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStateFile
	}
	if c.Environment == "" {
		c.Environment = DefaultEnv
	}
	if c.OutputFormat == "" {
		c.OutputFormat = DefaultOutput
	}

	def := DefaultFeatures()
	if len(c.Features.StringFields) == 0 && len(c.Features.CategoricalFields) == 0 && len(c.Features.ContinuousFields) == 0 {
		c.Features.StringFields = def.StringFields
		c.Features.CategoricalFields = def.CategoricalFields
		c.Features.ContinuousFields = def.ContinuousFields
	}
	if c.Features.TargetField == "" {
		c.Features.TargetField = def.TargetField
	}

	m := DefaultModel()
	if c.Model.NumTrees == 0 {
		c.Model.NumTrees = m.NumTrees
	}
	if c.Model.MaxDepth == 0 {
		c.Model.MaxDepth = m.MaxDepth
	}
	if c.Model.MinInstancesPerNode == 0 {
		c.Model.MinInstancesPerNode = m.MinInstancesPerNode
	}
	if c.Model.TrainRatio == 0 {
		c.Model.TrainRatio = m.TrainRatio
	}
	if c.Model.Seed == 0 {
		c.Model.Seed = m.Seed
	}
	if c.Model.Metric == "" {
		c.Model.Metric = m.Metric
	}

	j := DefaultJob()
	if len(c.Job.Columns) == 0 {
		c.Job.Columns = j.Columns
	}
	if c.Job.ModelDir == "" {
		c.Job.ModelDir = j.ModelDir
	}
}
