package bot

import (
	"sort"

	"github.com/onnwee/chanop/config"
)

// JoinAction asks the gateway to join Channel, with Password when the policy sets one.
type JoinAction struct {
	Channel  string
	Password string
}

// Plan is the difference between desired and actual membership.
type Plan struct {
	Join  []JoinAction
	Leave []string
}

// Empty reports whether the plan has nothing to do.
func (p Plan) Empty() bool { return len(p.Join) == 0 && len(p.Leave) == 0 }

// Reconcile computes the joins and parts that bring current in line with desired. It is pure:
// applying the plan and reconciling again yields an empty plan. Both lists are sorted by
// channel so the result is deterministic.
func Reconcile(desired map[string]config.ChannelPolicy, current []string) Plan {
	have := make(map[string]struct{}, len(current))
	for _, ch := range current {
		have[ch] = struct{}{}
	}

	var plan Plan
	for name, policy := range desired {
		if _, ok := have[name]; ok {
			continue
		}
		plan.Join = append(plan.Join, JoinAction{Channel: name, Password: policy.Password})
	}
	for ch := range have {
		if _, ok := desired[ch]; !ok {
			plan.Leave = append(plan.Leave, ch)
		}
	}

	sort.Slice(plan.Join, func(i, j int) bool { return plan.Join[i].Channel < plan.Join[j].Channel })
	sort.Strings(plan.Leave)
	return plan
}
