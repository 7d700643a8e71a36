package teamconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	domain "agentteam/internal/domain/agentteam"

	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk template shape. JSON files decode through the
// same YAML parser.
type templateFile struct {
	TemplateID    string                `yaml:"templateID"`
	Role          domain.Role           `yaml:"role"`
	SystemPrompt  string                `yaml:"system_prompt"`
	Skills        []domain.SkillRef     `yaml:"skills"`
	DefaultBudget domain.BudgetLimit    `yaml:"default_budget"`
	Capabilities  domain.CapabilitySpec `yaml:"capabilities"`
}

// LoadTemplates reads every .yaml, .yml and .json file in dir, in name order.
// A missing directory yields no templates; a malformed file is an error.
func LoadTemplates(dir, workspaceRoot string, sources domain.SkillSourcePolicy) ([]domain.Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read templates dir %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var templates []domain.Template
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", path, err)
		}
		tpl, err := ParseTemplate(raw)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", path, err)
		}
		tpl.Source = path
		tpl.SkillHash, tpl.SkillIssue = SkillHash(workspaceRoot, tpl, sources)
		templates = append(templates, tpl)
	}
	return templates, nil
}

// ParseTemplate decodes one template document.
func ParseTemplate(raw []byte) (domain.Template, error) {
	var file templateFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.Template{}, err
	}
	file.TemplateID = strings.TrimSpace(file.TemplateID)
	if file.TemplateID == "" {
		return domain.Template{}, fmt.Errorf("templateID is required")
	}
	if _, ok := domain.ParseRole(string(file.Role)); !ok {
		return domain.Template{}, fmt.Errorf("template %s: unknown role %q", file.TemplateID, file.Role)
	}
	return domain.Template{
		ID:            file.TemplateID,
		Role:          file.Role,
		SystemPrompt:  file.SystemPrompt,
		Skills:        file.Skills,
		DefaultBudget: file.DefaultBudget,
		Capabilities:  file.Capabilities,
	}, nil
}
