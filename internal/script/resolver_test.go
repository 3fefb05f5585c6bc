package script

import (
	"context"
	"testing"
)

func TestResolveSubstitutesPlaceholders(t *testing.T) {
	got := Resolve("Hello {contact_name}, this is {company}.", map[string]string{
		"contact_name": "Priya",
		"company":      "Acme",
	})
	want := "Hello Priya, this is Acme."
	if got != want {
		t.Fatalf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolveRepeatedPlaceholder(t *testing.T) {
	got := Resolve("{name} {name}", map[string]string{"name": "x"})
	if got != "x x" {
		t.Fatalf("Resolve() = %q, want %q", got, "x x")
	}
}

func TestResolveLeavesUnknownPlaceholdersVerbatim(t *testing.T) {
	got := Resolve("Hi {contact_name} from {company}", map[string]string{"contact_name": "Sam"})
	want := "Hi Sam from {company}"
	if got != want {
		t.Fatalf("Resolve() = %q, want %q", got, want)
	}

	missing := Unresolved("Hi {contact_name} from {company}", map[string]string{"contact_name": "Sam"})
	if len(missing) != 1 || missing[0] != "company" {
		t.Fatalf("Unresolved() = %v, want [company]", missing)
	}
}

func TestStaticProviderResolvesActiveScripts(t *testing.T) {
	p := NewStaticProvider()
	tpl, err := p.ResolveScript(context.Background(), "camp-1", TypeGreeting)
	if err != nil {
		t.Fatalf("ResolveScript() error = %v", err)
	}
	if tpl.Type != TypeGreeting || tpl.Content == "" {
		t.Fatalf("unexpected template: %+v", tpl)
	}

	p.Set(Template{Type: TypeClosing, Content: "bye", Active: false})
	if _, err := p.ResolveScript(context.Background(), "camp-1", TypeClosing); err != ErrNotFound {
		t.Fatalf("inactive script error = %v, want ErrNotFound", err)
	}
}
