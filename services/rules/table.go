package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/voicewire/call-control-plane/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape of the routing rule file
type ruleFile struct {
	Rules []*models.RoutingRule `yaml:"rules"`
}

// Table holds the loaded routing rules, keyed by (language, dialect-or-wildcard,
// modelType). Rules are immutable after load; Reload swaps the whole map under
// the write lock so a concurrent lookup never observes a half-updated table.
type Table struct {
	mu       sync.RWMutex
	rules    map[string]*models.RoutingRule
	path     string
	logger   *zap.Logger
	validate *validator.Validate
}

// NewTable creates a rule table bound to a rule file path. The file is not
// read until Load is called.
func NewTable(path string, logger *zap.Logger) *Table {
	return &Table{
		rules:    make(map[string]*models.RoutingRule),
		path:     path,
		logger:   logger,
		validate: validator.New(),
	}
}

// Load reads the rule file. A missing file triggers generation and persistence
// of the default rule set; a malformed file falls back to the defaults without
// persisting. Load never fails the caller: configuration errors are recovered
// locally.
func (t *Table) Load() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			t.logger.Warn("rule file missing, bootstrapping defaults", zap.String("path", t.path))
			return t.bootstrapDefaults()
		}
		t.logger.Warn("rule file unreadable, using defaults without persisting",
			zap.String("path", t.path), zap.Error(err))
		t.install(DefaultRules())
		return nil
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.logger.Warn("rule file malformed, using defaults without persisting",
			zap.String("path", t.path), zap.Error(err))
		t.install(DefaultRules())
		return nil
	}

	loaded := make([]*models.RoutingRule, 0, len(file.Rules))
	for i, rule := range file.Rules {
		if err := t.validateRule(rule); err != nil {
			t.logger.Warn("skipping invalid routing rule",
				zap.Int("index", i), zap.Error(err))
			continue
		}
		loaded = append(loaded, rule)
	}

	if len(loaded) == 0 {
		t.logger.Warn("rule file contained no usable rules, using defaults")
		t.install(DefaultRules())
		return nil
	}

	t.install(loaded)
	t.logger.Info("routing rules loaded",
		zap.String("path", t.path), zap.Int("count", len(loaded)))
	return nil
}

// Reload re-reads the rule file. Same recovery semantics as Load.
func (t *Table) Reload() error {
	return t.Load()
}

// FindRule resolves the rule for a request. Lookup tries exact
// (language+dialect), then language with wildcard dialect, then the global
// wildcard. Returns nil when nothing matches; the router substitutes its
// permissive default in that case.
func (t *Table) FindRule(language, dialect string, modelType models.ModelType) *models.RoutingRule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if dialect != "" {
		if rule, ok := t.rules[key(language, dialect, modelType)]; ok {
			return rule
		}
	}
	if rule, ok := t.rules[key(language, models.DialectWildcard, modelType)]; ok {
		return rule
	}
	if rule, ok := t.rules[key(models.LanguageWildcard, models.DialectWildcard, modelType)]; ok {
		return rule
	}
	return nil
}

// Rules returns every loaded rule
func (t *Table) Rules() []*models.RoutingRule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*models.RoutingRule, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r)
	}
	return out
}

// Count returns the number of loaded rules
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.rules)
}

func (t *Table) validateRule(rule *models.RoutingRule) error {
	if rule == nil {
		return fmt.Errorf("rule is nil")
	}
	if !rule.ModelType.IsValid() {
		return fmt.Errorf("unknown model type %q", rule.ModelType)
	}
	return t.validate.Struct(rule)
}

func (t *Table) install(rules []*models.RoutingRule) {
	table := make(map[string]*models.RoutingRule, len(rules))
	for _, rule := range rules {
		table[rule.Key()] = rule
	}

	t.mu.Lock()
	t.rules = table
	t.mu.Unlock()
}

// bootstrapDefaults installs the default rule set and persists it so the next
// start finds a rule file in place.
func (t *Table) bootstrapDefaults() error {
	defaults := DefaultRules()
	t.install(defaults)

	if err := t.persist(defaults); err != nil {
		t.logger.Warn("could not persist default rules", zap.Error(err))
	} else {
		t.logger.Info("default routing rules persisted", zap.String("path", t.path))
	}
	return nil
}

func (t *Table) persist(rules []*models.RoutingRule) error {
	data, err := yaml.Marshal(ruleFile{Rules: rules})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(t.path, data, 0o644)
}

// DefaultRules returns the minimal bootstrap rule set: one wildcard rule per
// model type with a permissive threshold, covering English as the guaranteed
// language.
func DefaultRules() []*models.RoutingRule {
	var defaults []*models.RoutingRule
	for _, mt := range models.ValidModelTypes {
		defaults = append(defaults,
			&models.RoutingRule{
				Language:             "en",
				ModelType:            mt,
				PriorityProviders:    []string{"default"},
				FallbackEnabled:      true,
				PerformanceThreshold: 0,
			},
			&models.RoutingRule{
				Language:             models.LanguageWildcard,
				ModelType:            mt,
				PriorityProviders:    []string{"default"},
				FallbackEnabled:      true,
				PerformanceThreshold: 0,
			},
		)
	}
	return defaults
}

// PermissiveDefault builds the hardcoded fallback rule used when no loaded
// rule matches a request: every known provider in registry order, lowest
// threshold, fallback enabled.
func PermissiveDefault(language, dialect string, modelType models.ModelType, providers []string) *models.RoutingRule {
	if len(providers) == 0 {
		providers = []string{"default"}
	}
	return &models.RoutingRule{
		Language:             language,
		Dialect:              dialect,
		ModelType:            modelType,
		PriorityProviders:    providers,
		FallbackEnabled:      true,
		PerformanceThreshold: 0,
	}
}

func key(language, dialect string, modelType models.ModelType) string {
	return language + ":" + dialect + ":" + string(modelType)
}
