package bot

import (
	"github.com/onnwee/chanop/config"
	"github.com/onnwee/chanop/irc"
)

// UserFact is what we know about a user at decision time.
type UserFact struct {
	Nick     string
	User     string
	Host     string
	RealName string
}

// Origin is the canonical nick!user@host form that operator rules match against.
func (f UserFact) Origin() string {
	return irc.Source{Nick: f.Nick, User: f.User, Host: f.Host}.String()
}

// FactFromOrigin builds a fact from a message prefix, as seen on JOIN.
func FactFromOrigin(origin string) UserFact {
	s := irc.ParseOrigin(origin)
	return UserFact{Nick: s.Nick, User: s.User, Host: s.Host}
}

// PolicySource looks up a channel's policy. *config.Config satisfies it.
type PolicySource interface {
	Policy(channel string) (config.ChannelPolicy, bool)
}

// AutoOp decides operator grants. Channels without a policy or without a rule never grant.
type AutoOp struct {
	Policies PolicySource
}

// Evaluate returns the mode change to apply ("+o <nick>") when fact matches channel's rule.
func (a AutoOp) Evaluate(channel string, fact UserFact) (mode string, ok bool) {
	if a.Policies == nil || fact.Nick == "" {
		return "", false
	}
	p, found := a.Policies.Policy(channel)
	if !found || p.Oper == nil {
		return "", false
	}
	if !p.Oper.Match(fact.Origin()) {
		return "", false
	}
	return "+o " + fact.Nick, true
}
