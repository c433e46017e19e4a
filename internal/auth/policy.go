package auth

import (
	"errors"
	"fmt"
	"strings"
)

const (
	PolicyCityMatch = "city_match"
	PolicyHasName   = "must_have_name"
)

const (
	ReasonCityMismatch  = "city_mismatch"
	ReasonMissingName   = "missing_name"
	ReasonUnknownPolicy = "unknown_policy"
)

var ErrPolicyDenied = errors.New("policy denied")

// Resource is what a request targets, as far as policies care.
type Resource struct {
	CityID int64
}

type Decision struct {
	Allow  bool
	Reason string
}

func Allow() Decision {
	return Decision{Allow: true}
}

func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Err converts a denial into the error reported at the edge.
func (d Decision) Err() error {
	switch {
	case d.Allow:
		return nil
	case d.Reason == ReasonCityMismatch:
		return ErrCityMismatch
	default:
		return fmt.Errorf("%w: %s", ErrPolicyDenied, d.Reason)
	}
}

// Policy must be pure: the same claims and resource always yield the same
// decision.
type Policy interface {
	Evaluate(claims Claims, resource Resource) Decision
}

type PolicyFunc func(claims Claims, resource Resource) Decision

func (f PolicyFunc) Evaluate(claims Claims, resource Resource) Decision {
	return f(claims, resource)
}

// CityMatch allows callers whose city claim equals the resource city, and
// global-access callers. A zero city claim matches nothing.
func CityMatch(claims Claims, resource Resource) Decision {
	if claims.CityID == AnyCity {
		return Allow()
	}
	if claims.CityID != 0 && claims.CityID == resource.CityID {
		return Allow()
	}
	return Deny(ReasonCityMismatch)
}

func HasName(claims Claims, _ Resource) Decision {
	if strings.TrimSpace(claims.Name) == "" {
		return Deny(ReasonMissingName)
	}
	return Allow()
}

// PolicyRegistry maps policy names to policies. Register everything during
// startup; lookups afterwards are read-only and safe for concurrent use.
type PolicyRegistry struct {
	policies map[string]Policy
}

// NewPolicyRegistry returns a registry holding the built-in policies.
func NewPolicyRegistry() *PolicyRegistry {
	r := &PolicyRegistry{policies: make(map[string]Policy)}
	r.policies[PolicyCityMatch] = PolicyFunc(CityMatch)
	r.policies[PolicyHasName] = PolicyFunc(HasName)
	return r
}

func (r *PolicyRegistry) Register(name string, policy Policy) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("policy name is required")
	}
	if policy == nil {
		return fmt.Errorf("policy %q is nil", name)
	}
	if _, exists := r.policies[name]; exists {
		return fmt.Errorf("policy %q already registered", name)
	}

	r.policies[name] = policy
	return nil
}

func (r *PolicyRegistry) Lookup(name string) (Policy, bool) {
	policy, ok := r.policies[name]
	return policy, ok
}

// Evaluator has no side effects; callers record decisions if they want to.
type Evaluator struct {
	registry *PolicyRegistry
}

func NewEvaluator(registry *PolicyRegistry) *Evaluator {
	if registry == nil {
		registry = NewPolicyRegistry()
	}
	return &Evaluator{registry: registry}
}

// Evaluate runs the named policy. Unknown names deny.
func (e *Evaluator) Evaluate(name string, claims Claims, resource Resource) Decision {
	if policy, ok := e.registry.Lookup(name); ok {
		return policy.Evaluate(claims, resource)
	}
	return Deny(ReasonUnknownPolicy)
}

// Authorize decides whether claims may access the city subtree rooted at
// resourceCityID.
func (e *Evaluator) Authorize(claims Claims, resourceCityID int64) Decision {
	return e.Evaluate(PolicyCityMatch, claims, Resource{CityID: resourceCityID})
}
