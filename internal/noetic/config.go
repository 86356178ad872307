package noetic

// Config holds every tunable constant from the spec's component contracts.
// It is YAML-serializable so a host can ship an evolution-parameter file
// alongside the engine, in the same spirit as the teacher's
// EvolutionConfig / DefaultEvolutionConfig pair.
type Config struct {
	// Field equilibrium (§4.1)
	Alpha            float64 `yaml:"alpha"`              // query-relevance injection weight
	Beta             float64 `yaml:"beta"`                // reinforcement injection weight
	Tau              float64 `yaml:"tau"`                 // Laplacian coupling strength
	Lambda           float64 `yaml:"lambda"`              // decay / diagonal term
	EquilibriumIters int     `yaml:"equilibrium_iters"`
	MixEta           float64 `yaml:"mix_eta"`    // η mixing rate for solve_equilibrium
	WarmupEta        float64 `yaml:"warmup_eta"` // η for the three warm-start passes

	// Chemistry (§4.2)
	ConductivityFloor      float64 `yaml:"conductivity_floor"`
	Kappa                  float64 `yaml:"kappa"` // conductivity self-limiting term
	ReinforcementGain      float64 `yaml:"reinforcement_gain"`
	StabilityDecay         float64 `yaml:"stability_decay"`
	AffinityGrowth         float64 `yaml:"affinity_growth"`
	Damping                float64 `yaml:"damping"` // energy_potential damping
	AgeDecayRate           float64 `yaml:"age_decay_rate"`
	AgeErosionThreshold    int     `yaml:"age_erosion_threshold"`
	FusionSimilarity       float64 `yaml:"fusion_similarity"`
	FissionVolatility      float64 `yaml:"fission_volatility"`
	PruneAgeThreshold      int     `yaml:"prune_age_threshold"`
	PruneZeroActivityAge   int     `yaml:"prune_zero_activity_age"`
	SplitMinActivations    int     `yaml:"split_min_activations"`
	MaintenanceEveryCycles int     `yaml:"maintenance_every_cycles"`

	// Emergent dimensions (§4.3)
	PromotionThreshold    float64 `yaml:"promotion_threshold"`
	DemotionThreshold     float64 `yaml:"demotion_threshold"`
	GammaGrowthRate       float64 `yaml:"gamma_growth_rate"`
	GammaMax              float64 `yaml:"gamma_max"`
	LearningRate          float64 `yaml:"learning_rate"`
	DimensionDecayRate    float64 `yaml:"dimension_decay_rate"`
	CompressionThreshold  float64 `yaml:"compression_threshold"`
	CompressEveryCycles   int     `yaml:"compress_every_cycles"`
	MetaLearnEveryCycles  int     `yaml:"meta_learn_every_cycles"`
	FitnessHistoryCap     int     `yaml:"fitness_history_cap"`

	// Rollout + fitness (§4.4)
	RolloutHorizon    int     `yaml:"rollout_horizon"`
	RolloutBranches   int     `yaml:"rollout_branches"`
	BranchTemperature float64 `yaml:"branch_temperature"`
	Discount          float64 `yaml:"discount"`
	TopKActions       int     `yaml:"top_k_actions"`
	TraceDecay        float64 `yaml:"trace_decay"` // ρ

	// Beam emitter (§4.5)
	BeamWidth          int     `yaml:"beam_width"`
	BeamExpansion      int     `yaml:"beam_expansion"`
	MaxTokens          int     `yaml:"max_tokens"`
	RepetitionWindow   int     `yaml:"repetition_window"`
	RepetitionGamma    float64 `yaml:"repetition_gamma"`
	RecencyTau         float64 `yaml:"recency_tau_seconds"`
	LengthNormBeta     float64 `yaml:"length_norm_beta"`
	LaplaceAlpha       float64 `yaml:"laplace_alpha"`
	StopScoreThreshold float64 `yaml:"stop_score_threshold"`

	// Embedding
	EmbeddingDim int `yaml:"embedding_dim"`
}

// DefaultConfig returns the constants stated or implied by the spec.
func DefaultConfig() Config {
	return Config{
		Alpha: 1.0, Beta: 0.3, Tau: 1.0, Lambda: 0.1,
		EquilibriumIters: 10, MixEta: 0.5, WarmupEta: 0.15,

		ConductivityFloor: 0.05, Kappa: 0.5,
		ReinforcementGain: 0.05, StabilityDecay: 0.98,
		AffinityGrowth: 0.1, Damping: 0.2,
		AgeDecayRate: 0.01, AgeErosionThreshold: 1000,
		FusionSimilarity: 0.9, FissionVolatility: 0.08,
		PruneAgeThreshold: 100, PruneZeroActivityAge: 500,
		SplitMinActivations: 50, MaintenanceEveryCycles: 10,

		PromotionThreshold: 0.6, DemotionThreshold: 0.1,
		GammaGrowthRate: 0.05, GammaMax: 2.0,
		LearningRate: 0.05, DimensionDecayRate: 0.95,
		CompressionThreshold: 0.85, CompressEveryCycles: 10,
		MetaLearnEveryCycles: 5, FitnessHistoryCap: 100,

		RolloutHorizon: 3, RolloutBranches: 8,
		BranchTemperature: 0.5, Discount: 0.9,
		TopKActions: 5, TraceDecay: 0.9,

		BeamWidth: 3, BeamExpansion: 4, MaxTokens: 24,
		RepetitionWindow: 6, RepetitionGamma: 0.8,
		RecencyTau: 300, LengthNormBeta: 0.5,
		LaplaceAlpha: 0.5, StopScoreThreshold: 0.02,

		EmbeddingDim: 128,
	}
}

// Mode selects the beam emitter's driver-bias profile (§6).
type Mode string

const (
	ModeBalanced     Mode = "balanced"
	ModeExploration  Mode = "exploration"
	ModeExploitation Mode = "exploitation"
	ModeAccuracy     Mode = "accuracy"
)
