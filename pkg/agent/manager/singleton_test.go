package manager

import "testing"

func TestDefault_ConstructsOnFirstUse(t *testing.T) {
	Reset()
	defer Reset()

	m := Default()
	if m == nil {
		t.Fatal("Default() returned nil")
	}
	if Default() != m {
		t.Fatal("Default() should return the same instance on repeated calls")
	}
}

func TestSetDefault_ReplacesInstance(t *testing.T) {
	Reset()
	defer Reset()

	custom := New(Config{}, map[string]Collector{}, nil, nil)
	SetDefault(custom)
	if Default() != custom {
		t.Fatal("Default() should return the instance set via SetDefault")
	}
}
