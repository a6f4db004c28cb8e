package schema

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field describes one slot of the lead record being collected.
type Field struct {
	Key         string `yaml:"key"`
	Description string `yaml:"description"`
	Priority    int    `yaml:"priority"`
}

// Default returns the built-in tutoring lead schema, ordered by priority.
func Default() []Field {
	return sorted([]Field{
		{Key: "parent_name", Description: "Parent or guardian's name", Priority: 1},
		{Key: "phone", Description: "Parent's 10-digit mobile number", Priority: 2},
		{Key: "student_name", Description: "Student's name", Priority: 3},
		{Key: "grade", Description: "Student's class (1-12)", Priority: 4},
		{Key: "subjects", Description: "Subjects or exams the student needs help with", Priority: 5},
		{Key: "mode", Description: "Home tuition or online classes", Priority: 6},
		{Key: "area", Description: "Locality or neighbourhood for home tuition", Priority: 7},
		{Key: "schedule", Description: "Preferred days and timings", Priority: 8},
		{Key: "budget", Description: "Monthly budget for tuition", Priority: 9},
		{Key: "demo_consent", Description: "Whether a free demo class is wanted", Priority: 10},
	})
}

type fileSchema struct {
	Fields []Field `yaml:"fields"`
}

// Load reads a field schema from a YAML file. An empty path returns the
// built-in defaults.
func Load(path string) ([]Field, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	var fs fileSchema
	if err := yaml.Unmarshal(raw, &fs); err != nil {
		return nil, fmt.Errorf("parse schema file: %w", err)
	}
	if len(fs.Fields) == 0 {
		return nil, fmt.Errorf("schema file %s defines no fields", path)
	}
	seen := make(map[string]bool, len(fs.Fields))
	for _, f := range fs.Fields {
		key := strings.TrimSpace(f.Key)
		if key == "" {
			return nil, fmt.Errorf("schema file %s contains a field with an empty key", path)
		}
		if seen[key] {
			return nil, fmt.Errorf("schema file %s repeats field %q", path, key)
		}
		seen[key] = true
	}
	return sorted(fs.Fields), nil
}

// Keys returns the field keys in ask order.
func Keys(fields []Field) []string {
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	return keys
}

func sorted(fields []Field) []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	// Stable so declaration order breaks priority ties.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}
