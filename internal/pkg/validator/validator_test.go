package validator

import "testing"

type repoPayload struct {
	URL string `json:"url" validate:"required,github_url"`
}

func TestGitHubURLRule(t *testing.T) {
	valid := []string{
		"https://github.com/octocat/hello-world",
		"https://www.github.com/octocat/hello-world",
		"github.com/octocat/hello-world.git",
	}
	for _, url := range valid {
		if errs := Validate(repoPayload{URL: url}); errs != nil {
			t.Fatalf("expected %q to pass, got %v", url, errs)
		}
	}

	invalid := []string{
		"https://evilgithub.com/octocat/hello-world",
		"https://gitlab.com/octocat/hello-world",
		"https://example.com/?u=github.com/octocat/hello-world",
		"https://github.com/octocat",
	}
	for _, url := range invalid {
		if errs := Validate(repoPayload{URL: url}); errs == nil {
			t.Fatalf("expected %q to fail validation", url)
		}
	}
}

func TestCPFRule(t *testing.T) {
	type payload struct {
		CPF string `json:"cpf" validate:"omitempty,cpf"`
	}

	if errs := Validate(payload{CPF: "123.456.789-09"}); errs != nil {
		t.Fatalf("expected formatted cpf to pass, got %v", errs)
	}
	if errs := Validate(payload{CPF: ""}); errs != nil {
		t.Fatalf("expected empty cpf to pass with omitempty, got %v", errs)
	}
	if errs := Validate(payload{CPF: "1234"}); errs == nil {
		t.Fatal("expected short cpf to fail")
	}
}
