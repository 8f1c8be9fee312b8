package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfigBytes() []byte {
	return []byte(`
git:
  remote: origin
  path: /srv/app

environment_defaults:
  platforms: [vercel, render]

environments:
  - name: beta
    branch: beta
    aliases: [dev]
    vercel_project: app-beta
    render_service: srv-beta
    url: https://beta.example.com
  - name: gamma
    branch: gamma
    aliases: [staging, stage]
    vercel_project: app-gamma
    render_service: srv-gamma
  - name: prod
    branch: prod
    aliases: [production, main]
    platforms: [render]
    render_service: srv-prod
    url: https://example.com
`)
}

func TestParse(t *testing.T) {
	cfg, err := Parse(FormatYAML, validConfigBytes())
	assert.NoError(t, err)

	// Ambient defaults
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "origin", cfg.Git.Remote)
	assert.Equal(t, "/srv/app", cfg.Git.Path)
	assert.Equal(t, "https://api.vercel.com", cfg.Vercel.APIURL)
	assert.Equal(t, "https://api.render.com", cfg.Render.APIURL)
	assert.Equal(t, 100, cfg.Journal.MaxEntriesPerEnvironment)

	// Environments inherit defaults unless overridden
	assert.Len(t, cfg.Environments, 3)
	assert.Equal(t, []string{"vercel", "render"}, cfg.Environments[0].Platforms)
	assert.Equal(t, []string{"render"}, cfg.Environments[2].Platforms)
	assert.Equal(t, []string{"production", "main"}, cfg.Environments[2].Aliases)

	assert.NoError(t, cfg.Validate())
}

func TestParseInvalidFormat(t *testing.T) {
	_, err := Parse(Format(42), []byte{})
	assert.Error(t, err)
}

func TestGetTypeFromFileExtension(t *testing.T) {
	for filename, expected := range map[string]Format{
		"config.yml":  FormatYAML,
		"config.yaml": FormatYAML,
	} {
		f, err := GetTypeFromFileExtension(filename)
		assert.NoError(t, err)
		assert.Equal(t, expected, f)
	}

	_, err := GetTypeFromFileExtension("config.json")
	assert.Error(t, err)
}

func TestValidateRequiresTwoEnvironments(t *testing.T) {
	cfg, err := Parse(FormatYAML, []byte(`
environments:
  - name: prod
    branch: prod
`))
	assert.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestValidateAliasCollision(t *testing.T) {
	cfg, err := Parse(FormatYAML, []byte(`
environments:
  - name: beta
    branch: beta
  - name: prod
    branch: prod
    aliases: [BETA]
`))
	assert.NoError(t, err)

	// Aliases resolve case-insensitively, so BETA collides with beta.
	assert.Error(t, cfg.Validate())
}

func TestValidateBranchCollision(t *testing.T) {
	cfg, err := Parse(FormatYAML, []byte(`
environments:
  - name: beta
    branch: main
  - name: prod
    branch: main
`))
	assert.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestValidateUnsupportedPlatform(t *testing.T) {
	cfg, err := Parse(FormatYAML, []byte(`
environments:
  - name: beta
    branch: beta
    platforms: [heroku]
  - name: prod
    branch: prod
`))
	assert.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestToYAMLMasksTokens(t *testing.T) {
	cfg, err := Parse(FormatYAML, validConfigBytes())
	assert.NoError(t, err)

	cfg.Vercel.Token = "super-secret"
	cfg.Render.Token = "even-more-secret"

	out := cfg.ToYAML()
	assert.NotContains(t, out, "super-secret")
	assert.NotContains(t, out, "even-more-secret")
}
