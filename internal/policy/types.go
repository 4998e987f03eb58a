package policy

// #region policy

// Policy is an ordered, fixed-length sequence of action names.
type Policy []string

// Scored is a policy with its Expected Free Energy and the summed components.
// Lower EFE is better.
type Scored struct {
	Policy    Policy
	EFE       float64
	Risk      float64
	Ambiguity float64
	Epistemic float64
	Cost      float64 // cost penalty after cost_scale
	Bonus     float64 // sense bonus
}

// First returns the policy's first action, or "" for an empty policy.
func (s Scored) First() string {
	if len(s.Policy) == 0 {
		return ""
	}
	return s.Policy[0]
}

// #endregion policy

// #region evaluator-config

// EvaluatorConfig weights the EFE components.
type EvaluatorConfig struct {
	InfoWeight       float64 `yaml:"info_weight"`        // multiplies epistemic value
	CostWeight       float64 `yaml:"cost_weight"`        // multiplies action cost
	SenseBonusWeight float64 `yaml:"sense_bonus_weight"` // multiplies entropy for sense actions
	Depth            int     `yaml:"depth"`              // policy length
	MaxNodes         int     `yaml:"max_nodes"`          // exhaustive cap, 0 = unlimited
	BeamWidth        int     `yaml:"beam_width"`         // 0 = exhaustive search
}

// DefaultEvaluatorConfig returns the standard weights.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		InfoWeight:       2.0,
		CostWeight:       3.0,
		SenseBonusWeight: 1.0,
		Depth:            2,
		MaxNodes:         0,
		BeamWidth:        0,
	}
}

// #endregion evaluator-config

// #region selector-config

// SelectorConfig controls how scored policies become an action.
type SelectorConfig struct {
	Temperature     float64 `yaml:"temperature"`
	MaxPolicies     int     `yaml:"max_policies"`      // 0 = keep all
	TieBreakEntropy float64 `yaml:"tie_break_entropy"` // tie-breaker only runs above this entropy
	SkillBiasWeight float64 `yaml:"skill_bias_weight"`
}

// DefaultSelectorConfig returns the standard selector settings.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		Temperature:     1.0,
		MaxPolicies:     0,
		TieBreakEntropy: 0.6,
		SkillBiasWeight: 4.0,
	}
}

// #endregion selector-config

// #region skill-prior

// SkillPrior is the learned track record of an action.
type SkillPrior struct {
	SuccessRate float64
	Confidence  float64
}

// SkillPriors maps an action name to its prior. Missing actions get no bias.
type SkillPriors map[string]SkillPrior

// #endregion skill-prior

// #region selection

// Selection is the outcome of action selection.
type Selection struct {
	Action        string
	Ranked        []Scored  // re-ranked after bias, ascending EFE
	Probabilities []float64 // softmax(-EFE/T), aligned with Ranked
}

// #endregion selection
