package domain

// Strategy is read-only configuration describing one trading strategy and
// the instruments it evaluates. Rule parameters are stored as JSON and
// decoded into a typed variant at load time (see internal/strategy).
type Strategy struct {
	ID         int64
	Name       string
	Kind       string   // "ma_crossover", "rsi_reversion"
	ParamsJSON string   // raw rule parameters
	Universe   []string // symbols the strategy evaluates
	Active     bool
}
