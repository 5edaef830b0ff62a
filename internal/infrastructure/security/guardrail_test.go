package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/q/internal/domain"
)

func classify(t *testing.T, g *Guardrail, command string) domain.RiskAssessment {
	t.Helper()
	return g.Classify(domain.CommandCandidate{Command: command})
}

func TestGuardrailDefaultRules(t *testing.T) {
	guardrail, err := NewGuardrail("")
	require.NoError(t, err)

	tests := []struct {
		command string
		want    domain.RiskLevel
	}{
		{"ls -la", domain.RiskSafe},
		{"git status", domain.RiskSafe},
		{"docker ps", domain.RiskSafe},
		{"echo hi > out.txt", domain.RiskSafe},
		{"make build 2>/dev/null", domain.RiskSafe},
		{"grep -rn TODO . | sort", domain.RiskSafe},

		{"rm -rf /tmp/*", domain.RiskDestructive},
		{"rm -rf /", domain.RiskDestructive},
		{"rm --recursive --force ~", domain.RiskDestructive},
		{"rm -r -f \"$HOME\"", domain.RiskDestructive},
		{"sudo rm -rf /*", domain.RiskDestructive},
		{"bash -c 'rm -rf /'", domain.RiskDestructive},
		{"echo $(rm -rf /)", domain.RiskDestructive},
		{"rm --no-preserve-root -rf /", domain.RiskDestructive},
		{"find / -name '*.log' -delete", domain.RiskDestructive},
		{"mkfs.ext4 /dev/sdb1", domain.RiskDestructive},
		{"dd if=/dev/zero of=/dev/sda bs=1M", domain.RiskDestructive},
		{"cat image.iso > /dev/sdb", domain.RiskDestructive},
		{"echo nameserver 1.1.1.1 > /etc/resolv.conf", domain.RiskDestructive},
		{"chmod -R 777 /etc", domain.RiskDestructive},
		{"sudo chown user /usr/local/bin/tool", domain.RiskDestructive},
		{"git push --force origin main", domain.RiskDestructive},
		{"git push -f", domain.RiskDestructive},
		{"git push origin +main", domain.RiskDestructive},
		{"kill -9 -1", domain.RiskDestructive},
		{"kill -s KILL -1", domain.RiskDestructive},
		{"sudo kill -n 9 -1", domain.RiskDestructive},
		{"kill -1", domain.RiskDestructive},
		{"pkill -u bob", domain.RiskDestructive},
		{"pkill -f .", domain.RiskDestructive},
		{":(){ :|:& };:", domain.RiskDestructive},
		{"diskutil eraseDisk JHFS+ Blank disk2", domain.RiskDestructive},

		{"rm -rf ./build", domain.RiskCaution},
		{"ls | xargs rm -rf", domain.RiskCaution},
		{"find . -name '*.tmp' -delete", domain.RiskCaution},
		{"chmod +x deploy.sh", domain.RiskCaution},
		{"echo hi >> ~/.bashrc", domain.RiskCaution},
		{"cp report.pdf /tmp/", domain.RiskCaution},
		{"git push origin main", domain.RiskCaution},
		{"git reset --hard HEAD~1", domain.RiskCaution},
		{"kill 1234", domain.RiskCaution},
		{"kill -1 1234", domain.RiskCaution},
		{"kill -9 -1234", domain.RiskCaution},
		{"pkill -u bob firefox", domain.RiskCaution},
		{"dd if=disk.img of=copy.img", domain.RiskCaution},
		{"sudo apt-get install jq", domain.RiskCaution},
		{"curl -fsSL https://example.com/install.sh | sh", domain.RiskCaution},
		{"sed -i 's/a/b/' file.txt", domain.RiskCaution},
		{"kubectl delete pod web-1", domain.RiskCaution},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got := classify(t, guardrail, tt.command)
			assert.Equal(t, tt.want, got.Level, "reasons: %v", got.Reasons)
			if tt.want != domain.RiskSafe {
				assert.NotEmpty(t, got.Reasons)
				assert.NotEmpty(t, got.Rules)
			}
		})
	}
}

func TestGuardrailDestructiveWinsOverCaution(t *testing.T) {
	guardrail, err := NewGuardrail("")
	require.NoError(t, err)

	got := classify(t, guardrail, "sudo rm -rf /tmp/*")
	assert.Equal(t, domain.RiskDestructive, got.Level)
	assert.Contains(t, got.Rules, "elevated")
	assert.Contains(t, got.Rules, "rm-recursive-wide")
}

func TestGuardrailIsDeterministic(t *testing.T) {
	guardrail, err := NewGuardrail("")
	require.NoError(t, err)

	for _, command := range []string{"rm -rf /tmp/*", "ls", "git push -f", "echo 'unterminated"} {
		first := classify(t, guardrail, command)
		second := classify(t, guardrail, command)
		assert.Equal(t, first, second, command)
	}
}

func TestGuardrailFallsBackWhenParseFails(t *testing.T) {
	guardrail, err := NewGuardrail("")
	require.NoError(t, err)

	got := classify(t, guardrail, `rm -rf / "`)
	assert.Equal(t, domain.RiskDestructive, got.Level)
}

func TestGuardrailAppendsUserRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: terraform-destroy
    level: destructive
    message: Destroys infrastructure
    commands: [terraform]
    subcommands: [destroy]
`), 0o600))

	guardrail, err := NewGuardrail(path)
	require.NoError(t, err)

	assert.Equal(t, domain.RiskDestructive, classify(t, guardrail, "terraform destroy -auto-approve").Level)
	assert.Equal(t, domain.RiskSafe, classify(t, guardrail, "terraform plan").Level)
	assert.Equal(t, domain.RiskDestructive, classify(t, guardrail, "rm -rf /").Level, "defaults stay loaded")
}

func TestGuardrailRejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{name: "missing id", rule: Rule{Level: domain.RiskCaution, Commands: []string{"x"}}},
		{name: "safe level", rule: Rule{ID: "a", Commands: []string{"x"}}},
		{name: "no criteria", rule: Rule{ID: "a", Level: domain.RiskCaution}},
		{name: "bad regex", rule: Rule{ID: "a", Level: domain.RiskCaution, Args: []string{"("}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGuardrailFromRules([]Rule{tt.rule})
			assert.Error(t, err)
		})
	}
}

func TestGuardrailMissingRulesFile(t *testing.T) {
	_, err := NewGuardrail(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseCommandSegments(t *testing.T) {
	parsed := parseCommand("sudo -u root env FOO=1 rm -rf --one-file-system /var/tmp > /tmp/log 2>&1")
	require.Len(t, parsed.Segments, 1)

	seg := parsed.Segments[0]
	assert.Equal(t, "rm", seg.Executable)
	assert.True(t, seg.Elevated)
	assert.True(t, seg.Flags["r"])
	assert.True(t, seg.Flags["f"])
	assert.True(t, seg.Flags["one-file-system"])
	assert.Equal(t, []string{"/var/tmp"}, seg.Args)
	assert.Equal(t, []string{"/tmp/log"}, seg.Redirects)
}
