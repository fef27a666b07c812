package courier

import "testing"

func TestPackageRefKeyNormalizesCase(t *testing.T) {
	a := PackageRef{Ecosystem: Pip, Name: "Requests"}
	b := PackageRef{Ecosystem: Pip, Name: "requests"}
	if a.Key() != b.Key() {
		t.Errorf("Key() mismatch: %q vs %q", a.Key(), b.Key())
	}
}

func TestPackageRefKeyPEP503Separators(t *testing.T) {
	a := PackageRef{Ecosystem: Pip, Name: "zope.interface"}
	b := PackageRef{Ecosystem: Pip, Name: "zope_interface"}
	c := PackageRef{Ecosystem: Pip, Name: "zope-interface"}
	if a.Key() != b.Key() || b.Key() != c.Key() {
		t.Errorf("expected PEP 503 separator equivalence: %q %q %q", a.Key(), b.Key(), c.Key())
	}
}

func TestPackageRefKeyDistinguishesEcosystem(t *testing.T) {
	a := PackageRef{Ecosystem: Pip, Name: "foo"}
	b := PackageRef{Ecosystem: NPM, Name: "foo"}
	if a.Key() == b.Key() {
		t.Errorf("expected distinct keys across ecosystems, got %q", a.Key())
	}
}

func TestJobStateTerminal(t *testing.T) {
	for _, s := range []JobState{Completed, Failed, Cancelled} {
		if !s.Terminal() {
			t.Errorf("%v should be terminal", s)
		}
	}
	for _, s := range []JobState{Pending, Active, Paused} {
		if s.Terminal() {
			t.Errorf("%v should not be terminal", s)
		}
	}
}
