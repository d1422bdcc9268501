package common

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvDataPath         = "DGA_DATA_PATH"
	EnvModelDir         = "DGA_MODEL_DIR"
	EnvFolds            = "DGA_FOLDS"
	EnvSeed             = "DGA_SEED"
	EnvWorkers          = "DGA_WORKERS"
	EnvNormativeMode    = "DGA_NORMATIVE_MODE"
	EnvNormativeURL     = "DGA_NORMATIVE_URL"
	EnvNormativeTimeout = "DGA_NORMATIVE_TIMEOUT"
	EnvServerPort       = "DGA_SERVER_PORT"
	EnvLogLevel         = "DGA_LOG_LEVEL"
)

// Hyperparameter override keys
const (
	EnvForestTrees     = "DGA_FOREST_TREES"
	EnvForestMaxDepth  = "DGA_FOREST_MAX_DEPTH"
	EnvSVMC            = "DGA_SVM_C"
	EnvSVMGamma        = "DGA_SVM_GAMMA"
	EnvKNNNeighbors    = "DGA_KNN_NEIGHBORS"
	EnvMLPHidden       = "DGA_MLP_HIDDEN"
	EnvMLPLearningRate = "DGA_MLP_LEARNING_RATE"
	EnvMLPMaxEpochs    = "DGA_MLP_MAX_EPOCHS"
)

// Configuration defaults
const (
	DefaultDataPath         = "data"
	DefaultModelDir         = "models"
	DefaultFolds            = 5
	DefaultSeed             = 42
	DefaultWorkers          = 4
	DefaultNormativeMode    = "local"
	DefaultNormativeTimeout = "5s"
	DefaultServerPort       = 8080
	DefaultLogLevel         = "info"
)

// Validation constants
const (
	MinFolds      = 2
	MaxFolds      = 100
	MaxWorkers    = 256
	MinServerPort = 1024
	MaxServerPort = 65535
)
