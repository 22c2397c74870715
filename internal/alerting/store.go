package alerting

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"coinwatch/internal/storage"
)

// Storage keys shared with other clients of the same store.
const (
	RulesKey    = "alertRules"
	NotifiedKey = "alertNotified"
)

// NotifiedState maps rule id to the epoch milliseconds of the notification
// sent for the rule's current triggered episode.
type NotifiedState map[string]int64

// RuleStore is CRUD over alert rules persisted as one list in a KV store.
type RuleStore struct {
	kv    storage.KVStore
	newID func() string
}

// NewRuleStore constructs a RuleStore on kv.
func NewRuleStore(kv storage.KVStore) *RuleStore {
	return &RuleStore{kv: kv, newID: uuid.NewString}
}

// List returns all rules; a missing or malformed list reads as empty.
func (s *RuleStore) List(ctx context.Context) ([]Rule, error) {
	var rules []Rule
	ok, err := storage.GetJSON(ctx, s.kv, RulesKey, &rules)
	if err != nil {
		return nil, err
	}
	if !ok || rules == nil {
		return []Rule{}, nil
	}
	return rules, nil
}

// ListForCoin returns the rules for coinID in stored order.
func (s *RuleStore) ListForCoin(ctx context.Context, coinID string) ([]Rule, error) {
	rules, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]Rule, 0)
	for _, r := range rules {
		if r.CoinID == coinID {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// Get returns the rule with id.
func (s *RuleStore) Get(ctx context.Context, id string) (Rule, bool, error) {
	rules, err := s.List(ctx)
	if err != nil {
		return Rule{}, false, err
	}
	for _, r := range rules {
		if r.ID == id {
			return r, true, nil
		}
	}
	return Rule{}, false, nil
}

// Upsert validates rule, assigns an id when empty, and replaces the rule
// with the same id or appends it.
func (s *RuleStore) Upsert(ctx context.Context, rule Rule) (Rule, error) {
	rule.CoinID = strings.TrimSpace(rule.CoinID)
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	if rule.ID == "" {
		rule.ID = s.newID()
	}

	rules, err := s.List(ctx)
	if err != nil {
		return Rule{}, err
	}

	replaced := false
	for i := range rules {
		if rules[i].ID == rule.ID {
			rules[i] = rule
			replaced = true
			break
		}
	}
	if !replaced {
		rules = append(rules, rule)
	}

	if err := storage.SetJSON(ctx, s.kv, RulesKey, rules); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// Remove deletes the rule and its notified entry. It reports whether the
// rule existed.
func (s *RuleStore) Remove(ctx context.Context, id string) (bool, error) {
	rules, err := s.List(ctx)
	if err != nil {
		return false, err
	}

	filtered := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.ID != id {
			filtered = append(filtered, r)
		}
	}

	existed := len(filtered) != len(rules)
	if existed {
		if err := storage.SetJSON(ctx, s.kv, RulesKey, filtered); err != nil {
			return false, err
		}
	}

	notified, err := s.Notified(ctx)
	if err != nil {
		return existed, err
	}
	if _, ok := notified[id]; ok {
		delete(notified, id)
		if err := s.SaveNotified(ctx, notified); err != nil {
			return existed, err
		}
	}
	return existed, nil
}

// Notified loads the notified state; missing or malformed reads as empty.
func (s *RuleStore) Notified(ctx context.Context) (NotifiedState, error) {
	var state NotifiedState
	ok, err := storage.GetJSON(ctx, s.kv, NotifiedKey, &state)
	if err != nil {
		return nil, err
	}
	if !ok || state == nil {
		return NotifiedState{}, nil
	}
	return state, nil
}

// SaveNotified persists the notified state.
func (s *RuleStore) SaveNotified(ctx context.Context, state NotifiedState) error {
	if state == nil {
		state = NotifiedState{}
	}
	return storage.SetJSON(ctx, s.kv, NotifiedKey, state)
}
