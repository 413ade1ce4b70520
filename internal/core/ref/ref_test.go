package ref

import "testing"

func TestParseSlug(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in          string
		owner, name string
		ok          bool
	}{
		{"foo/bar", "foo", "bar", true},
		{" foo/bar ", "foo", "bar", true},
		{"foo", "", "", false},
		{"foo/", "", "", false},
		{"/bar", "", "", false},
		{"a/b/c", "", "", false},
	}
	for _, c := range cases {
		o, n, ok := ParseSlug(c.in)
		if o != c.owner || n != c.name || ok != c.ok {
			t.Fatalf("ParseSlug(%q) = %q %q %v", c.in, o, n, ok)
		}
	}
	if (Repo{Owner: "foo", Name: "bar"}).Slug() != "foo/bar" {
		t.Fatal("Slug mismatch")
	}
}
