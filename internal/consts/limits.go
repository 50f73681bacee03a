package consts

import "time"

// Context assembly limits
const (
	// DefaultTokenBudget is the default token budget for assembled code context
	DefaultTokenBudget = 3000
	// MaxBlobsPerTask is the maximum number of blob ids resolved per task
	MaxBlobsPerTask = 5
	// MaxTargetFiles is the maximum number of target files loaded into context
	MaxTargetFiles = 5
	// MaxRelatedFunctions is the maximum number of related-function search hits kept
	MaxRelatedFunctions = 5
	// MaxErrorPatternHits is the maximum number of error-handling examples gathered
	MaxErrorPatternHits = 3
)

// Context trimming floors
const (
	// TrimImportsCap caps the import list during budget trimming
	TrimImportsCap = 10
	// TrimRelatedFunctionsCap caps related functions during budget trimming
	TrimRelatedFunctionsCap = 3
	// TrimBlobFloor is the minimum number of blob entries kept during trimming
	TrimBlobFloor = 2
)

// Refinement limits
const (
	// MaxRefinementToolCalls is the maximum number of tool calls executed per refinement round
	MaxRefinementToolCalls = 5
)

// Generation parameters
const (
	// DefaultGenerateMaxTokens is the maximum tokens requested per patch generation
	DefaultGenerateMaxTokens = 4096
	// BaseTemperature is the starting sampling temperature for patch generation
	BaseTemperature = 0.7
	// RetryTemperatureStep is added to the temperature on each blind retry
	RetryTemperatureStep = 0.1
	// MaxTemperature caps the escalated sampling temperature
	MaxTemperature = 1.0
	// RefineTemperature is the fixed low temperature for error-directed refinement
	RefineTemperature = 0.2
	// MaxErrorLinesInPrompt limits how many error lines are echoed into a refinement prompt
	MaxErrorLinesInPrompt = 5
)

// Pipeline limits
const (
	// DefaultMaxRetries is the default number of retries beyond the first attempt
	DefaultMaxRetries = 2
	// BranchSlugMaxLen is the maximum length of the goal-derived branch slug
	BranchSlugMaxLen = 30
	// BranchSuffixLen is the number of task-id characters appended to a branch name
	BranchSuffixLen = 8
)

// Timeouts for subprocess and capability calls
const (
	// LintTimeout bounds a single linter invocation
	LintTimeout = 30 * time.Second
	// TypeCheckTimeout bounds a single type-checker invocation
	TypeCheckTimeout = 60 * time.Second
	// TestTimeout bounds a single test-runner invocation
	TestTimeout = 2 * time.Minute
	// GitTimeout bounds a single git subprocess invocation
	GitTimeout = 30 * time.Second
)
