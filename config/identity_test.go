package config

import "testing"

func TestServiceIdentifierEquality(t *testing.T) {
	t.Parallel()

	a := NewServiceIdentifier("oauth", "eu-central", "10.0.0.1", "app-1")
	b := NewServiceIdentifier("oauth", "eu-central", "10.0.0.1", "app-1")
	c := NewServiceIdentifier("oauth", "eu-west", "10.0.0.1", "app-1")

	// 值语义：四元组相同即相等，可直接作为 map key
	if a != b {
		t.Fatal("identical identifiers should be equal")
	}
	if a == c {
		t.Fatal("different datacenters should not be equal")
	}

	set := map[ServiceIdentifier]bool{a: true}
	if !set[b] {
		t.Fatal("equal identifier should hit the same map key")
	}
}

func TestServiceIdentifierString(t *testing.T) {
	t.Parallel()

	id := NewServiceIdentifier("oauth", "eu-central", "10.0.0.1", "app-1")
	if got := id.String(); got != "oauth[eu-central/10.0.0.1/app-1]" {
		t.Fatalf("unexpected string form: %q", got)
	}
}
