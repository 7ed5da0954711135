package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/open-policy-agent/opa/v1/rego"

	devicedomain "streamguard/internal/device/domain"
	"streamguard/internal/logger"
	"streamguard/internal/policy/domain"
)

const regoQuery = "data.streamguard.session.decision"

// Rego form of Decide. Facts that need Go (IP parsing, rule matching, clocks) are computed before
// evaluation; the module only orders them.
const regoPolicy = `package streamguard.session

decision := {"block": false, "reason": "exempt_product"} if {
	input.exempt
} else := {"block": true, "stop_code": input.ip_stop_code} if {
	input.ip_stop_code != ""
} else := {"block": true, "stop_code": "TIME_RESTRICTED"} if {
	input.time_blocked
} else := {"block": false, "reason": "approved"} if {
	input.device_status == "approved"
} else := {"block": false, "reason": "temporary_access"} if {
	input.temporary_access
} else := {"block": true, "stop_code": "DEVICE_REJECTED"} if {
	input.device_status == "rejected"
} else := {"block": true, "stop_code": "DEVICE_PENDING"} if {
	input.default_block
} else := {"block": false, "reason": "default_allow"}
`

// RegoDecider evaluates sessions with an embedded Rego module prepared once. Any evaluation
// failure falls back to Decide.
type RegoDecider struct {
	query rego.PreparedEvalQuery
	log   logger.Logger
}

// NewRegoDecider compiles the built-in policy.
func NewRegoDecider(ctx context.Context, log logger.Logger) (*RegoDecider, error) {
	return newRegoDecider(ctx, regoPolicy, log)
}

func newRegoDecider(ctx context.Context, module string, log logger.Logger) (*RegoDecider, error) {
	if log == nil {
		log = logger.NewTestLogger()
	}
	q, err := rego.New(
		rego.Query(regoQuery),
		rego.Module("session.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: prepare rego: %w", err)
	}
	return &RegoDecider{query: q, log: log}, nil
}

// HealthCheck evaluates the prepared policy against an unregistered device with blocking off.
// Does not touch any store. Returns nil on success.
func (r *RegoDecider) HealthCheck(ctx context.Context) error {
	d, err := r.eval(ctx, Input{}, nil)
	if err != nil {
		return err
	}
	if d.Block || d.Reason != domain.ReasonDefaultAllow {
		return fmt.Errorf("policy: unexpected health check verdict %q", d.Reason)
	}
	return nil
}

// Decide returns the Rego verdict for in, or Decide's when evaluation fails.
func (r *RegoDecider) Decide(ctx context.Context, in Input, msgs MessageSource) Decision {
	d, err := r.eval(ctx, in, msgs)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", in.UserID).Msg("rego evaluation failed, using built-in rules")
		return Decide(in, msgs)
	}
	return d
}

func (r *RegoDecider) eval(ctx context.Context, in Input, msgs MessageSource) (Decision, error) {
	facts, ipErr := regoInput(in)
	rs, err := r.query.Eval(ctx, rego.EvalInput(facts))
	if err != nil {
		return Decision{}, fmt.Errorf("policy: eval rego: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, fmt.Errorf("policy: rego decision undefined")
	}
	out, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("policy: rego decision is %T", rs[0].Expressions[0].Value)
	}
	if blocked, _ := out["block"].(bool); blocked {
		code, _ := out["stop_code"].(string)
		if !slices.Contains(domain.StopCodes(), domain.StopCode(code)) {
			return Decision{}, fmt.Errorf("policy: rego returned unknown stop code %q", code)
		}
		if code == string(domain.StopTimeRestricted) {
			return block(domain.StopTimeRestricted, msgs, ipErr), nil
		}
		return block(domain.StopCode(code), msgs, nil), nil
	}
	reason, _ := out["reason"].(string)
	switch domain.Reason(reason) {
	case domain.ReasonExemptProduct:
		return domain.Allow(domain.ReasonExemptProduct), nil
	case domain.ReasonApproved, domain.ReasonTemporaryAccess, domain.ReasonDefaultAllow:
		d := domain.Allow(domain.Reason(reason))
		d.IPError = ipErr
		return d, nil
	}
	return Decision{}, fmt.Errorf("policy: rego returned unknown reason %q", reason)
}

// regoInput flattens in into the facts the module reads. The IP validation error, if any, is
// returned separately since it only annotates the verdict.
func regoInput(in Input) (map[string]interface{}, error) {
	exempt := isExempt(in.Product, in.ExemptProducts)
	facts := map[string]interface{}{
		"exempt":           exempt,
		"ip_stop_code":     "",
		"time_blocked":     false,
		"device_status":    string(devicedomain.StatusPending),
		"temporary_access": in.Device.HasTemporaryAccess(in.Now),
		"default_block":    effectiveDefaultBlock(in),
	}
	if exempt {
		return facts, nil
	}
	code, blocked, ipErr := checkIP(in)
	if blocked {
		facts["ip_stop_code"] = string(code)
	}
	facts["time_blocked"] = timeBlocked(in)
	if in.Device != nil {
		facts["device_status"] = string(in.Device.Status)
	}
	return facts, ipErr
}
