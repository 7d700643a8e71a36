package teamconfig

import (
	"fmt"

	domain "agentteam/internal/domain/agentteam"
	"agentteam/internal/shared/logging"
)

// Workspace is the loaded orchestration configuration of one workspace.
type Workspace struct {
	Root      string
	Policy    *domain.SpawnPolicy
	Templates *domain.Registry
}

// Load reads the spawn policy and templates. Skill source rules come from the
// policy; without a policy any source is accepted.
func Load(root, policyPath, templatesDir string, logger logging.Logger) (Workspace, error) {
	logger = logging.OrNop(logger)
	policy, err := LoadPolicy(policyPath)
	if err != nil {
		return Workspace{}, err
	}
	if policy == nil {
		logger.Warn("no spawn policy at %s; spawns will be denied", policyPath)
	}

	var sources domain.SkillSourcePolicy
	if policy != nil {
		sources = policy.SkillSources
	}
	templates, err := LoadTemplates(templatesDir, root, sources)
	if err != nil {
		return Workspace{}, err
	}
	registry, err := domain.NewRegistry(templates)
	if err != nil {
		return Workspace{}, fmt.Errorf("templates in %s: %w", templatesDir, err)
	}
	for _, tpl := range templates {
		if tpl.SkillIssue != nil {
			logger.Warn("template %s: %s", tpl.ID, tpl.SkillIssue.Reason)
		}
	}
	logger.Info("loaded %d agent templates from %s", registry.Len(), templatesDir)
	return Workspace{Root: root, Policy: policy, Templates: registry}, nil
}
