package scan

import (
	"context"
	"fmt"
)

// Module names. These are stable map keys shared between reports, weight
// tables and stored data, so renaming one is a breaking change.
const (
	ModuleCertificate = "Certificate details"
	ModuleProtocol    = "Protocol security"
	ModulePattern     = "Domain pattern"
	ModuleHTML        = "HTML content and behavior"
	ModuleReputation  = "Reputation Databases"
	ModuleReliability = "Server reliability"
	ModuleDomainAge   = "Domain age"
	ModuleAI          = "AI analysis"
	ModuleReview      = "User review"
)

// ModuleNames lists every check module in display order.
var ModuleNames = []string{
	ModuleCertificate,
	ModuleProtocol,
	ModulePattern,
	ModuleHTML,
	ModuleReputation,
	ModuleReliability,
	ModuleDomainAge,
	ModuleAI,
	ModuleReview,
}

// CheckResult is the output of a single check module. A nil Score means the
// module abstained ("no data") and must be excluded from aggregation rather
// than counted as zero. Non-nil scores lie in [0.0, 1.0].
type CheckResult struct {
	Score   *float64 `json:"score"`
	Details []string `json:"details"`
}

// Scored builds a result carrying a sub-score in [0,1].
func Scored(score float64, details ...string) CheckResult {
	s := clampScore(score)
	return CheckResult{Score: &s, Details: details}
}

// NoData builds an abstention result.
func NoData(details ...string) CheckResult {
	return CheckResult{Score: nil, Details: details}
}

// Status classifies a module outcome. It is assigned explicitly by the
// orchestrator, never inferred from details text.
type Status string

const (
	StatusOk     Status = "ok"
	StatusNoData Status = "no-data"
	StatusError  Status = "error"
)

// ModuleOutcome is what the orchestrator stores per module name.
type ModuleOutcome struct {
	Name   string      `json:"name"`
	Result CheckResult `json:"result"`
	Status Status      `json:"status"`
}

// CheckFunc is the uniform module contract. Returning an error signals a
// fault the retry wrapper may recover from; a nil-Score result signals a
// deliberate abstention; anything else is a scored opinion.
type CheckFunc func(ctx context.Context) (CheckResult, error)

// ExcludedFlag is the tri-state exclusion marker emitted per module:
// JSON false (included), true (module errored) or "no-data" (abstained).
type ExcludedFlag string

const (
	Included       ExcludedFlag = ""
	ExcludedError  ExcludedFlag = "error"
	ExcludedNoData ExcludedFlag = "no-data"
)

func (f ExcludedFlag) MarshalJSON() ([]byte, error) {
	switch f {
	case ExcludedError:
		return []byte("true"), nil
	case ExcludedNoData:
		return []byte(`"no-data"`), nil
	default:
		return []byte("false"), nil
	}
}

func (f *ExcludedFlag) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "true":
		*f = ExcludedError
	case `"no-data"`:
		*f = ExcludedNoData
	case "false":
		*f = Included
	default:
		return fmt.Errorf("invalid excluded flag %s", b)
	}
	return nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
