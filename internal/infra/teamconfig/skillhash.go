package teamconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	domain "agentteam/internal/domain/agentteam"
)

// SkillsDir is where skills referenced by id live, relative to the workspace root.
const SkillsDir = ".agent-team/skills"

// SkillHash digests a template's skills and system prompt as
// "sha256:<hex>". Each skill contributes a "path:<p>:<digest>" or
// "id:<id>:<digest>" row; rows are sorted before hashing. The first skill
// problem found is returned as an issue and the hash is left empty.
func SkillHash(workspaceRoot string, tpl domain.Template, sources domain.SkillSourcePolicy) (string, *domain.SkillIssue) {
	rows := make([]string, 0, len(tpl.Skills)+1)
	for _, skill := range tpl.Skills {
		if issue := checkSource(skill, sources); issue != nil {
			return "", issue
		}
		var (
			row    string
			target string
		)
		switch {
		case skill.Path != "":
			target = skill.Path
			if !filepath.IsAbs(target) {
				target = filepath.Join(workspaceRoot, target)
			}
			row = "path:" + skill.Path
		case skill.ID != "":
			target = filepath.Join(workspaceRoot, SkillsDir, skill.ID, "SKILL.md")
			row = "id:" + skill.ID
		default:
			continue
		}
		raw, err := os.ReadFile(target)
		if err != nil {
			return "", &domain.SkillIssue{
				Code:   domain.CodeRequiredSkillMissing,
				Reason: fmt.Sprintf("missing required skill `%s` (%s)", strings.TrimPrefix(strings.TrimPrefix(row, "id:"), "path:"), target),
			}
		}
		digest := hexDigest(raw)
		if pinned, ok := sources.PinnedHashes[row]; ok && strings.TrimPrefix(pinned, "sha256:") != digest {
			return "", &domain.SkillIssue{
				Code:   domain.CodeSkillHashMismatch,
				Reason: fmt.Sprintf("pinned hash mismatch for skill reference `%s`", row),
			}
		}
		rows = append(rows, row+":"+digest)
	}
	if tpl.SystemPrompt != "" {
		rows = append(rows, "prompt:"+hexDigest([]byte(tpl.SystemPrompt)))
	}
	slices.Sort(rows)

	h := sha256.New()
	for _, row := range rows {
		h.Write([]byte(row))
		h.Write([]byte{'\n'})
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func checkSource(skill domain.SkillRef, sources domain.SkillSourcePolicy) *domain.SkillIssue {
	deny := func(reason string) *domain.SkillIssue {
		return &domain.SkillIssue{Code: domain.CodeSkillSourceDenied, Reason: "skill source denied: " + reason}
	}
	switch sources.Mode {
	case domain.SkillSourceProjectOnly:
		if skill.Path == "" {
			return deny("project_only requires skill paths")
		}
		if filepath.IsAbs(skill.Path) {
			return deny("absolute skill paths are forbidden")
		}
		if clean := filepath.Clean(skill.Path); clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return deny("skill path escapes the workspace")
		}
	case domain.SkillSourceAllowlist:
		if skill.ID != "" && slices.Contains(sources.AllowlistIDs, skill.ID) {
			return nil
		}
		if skill.Path != "" && slices.Contains(sources.AllowlistPaths, skill.Path) {
			return nil
		}
		return deny("not present in allowlist")
	}
	return nil
}

func hexDigest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
